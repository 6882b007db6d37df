// Package nextcrm is a Go client for the NextCRM trading API with managed
// cookie sessions.
//
// A [Client] owns one [gateway.Gateway] (cookie jar, refresh coordination,
// redirect-to-login) and one [session.Store] (who is signed in). Build it
// once per user through [Builder.Build] and share it between goroutines.
//
// # Architecture boundaries
//
// nextcrm is the public surface: [Client], [Builder], [Config], entity types
// and the REST methods. Request plumbing lives in gateway, authentication
// state in session, and counters and event dispatch under internal/.
//
// # What this package must NOT do
//
//   - Expose tokens. Cookies stay in the gateway's jar.
//   - Retry calls on its own. The gateway replays a call at most once, after
//     a successful refresh.
//   - Keep package-level state. Every Client is independent.
package nextcrm
