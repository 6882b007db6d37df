// Package session owns the client-side authentication state for one NextCRM
// user and its durable snapshot.
//
// # State machine
//
// A [Store] moves between four phases:
//
//	Unknown -> Authenticating -> Authenticated | Anonymous
//
// Login, the login step of Register, and CheckAuth enter Authenticating.
// Logout and Clear always end in Anonymous, whatever the backend said.
//
// # Persistence
//
// The persisted subset ([Snapshot]) is the profile and the authenticated
// flag. It is a UX cache: a restored snapshot is never trusted until
// CheckAuth confirms it with the backend. Snapshots are encoded as a version
// byte followed by JSON and kept by a [Persister] (memory, file or Redis).
//
// # What this package must NOT do
//
//   - Import nextcrm or gateway (no upward imports).
//   - Retry failed calls; retry and refresh belong to the gateway.
//   - Store tokens. Cookies live in the gateway's jar only.
package session
