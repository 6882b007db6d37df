// Package password hashes and checks passwords for the in-process NextCRM
// backend used by tests, the load generator and the demo server.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Policy mirrors the real backend's validators: a minimum length and a ban
// on all-digit passwords. Violations come back as *PolicyError so the fake
// backend can report them the way the real one does.
package password
