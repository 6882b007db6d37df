// Package gateway is the single choke point through which every NextCRM API
// call flows.
//
// A [Gateway] runs each [Request] through an explicit middleware pipeline:
//
//	Logging → CircuitBreaker → RefreshCoordinator → Credentials → Transport
//
// Credentials attaches the access_token and refresh_token cookies from the
// jar and stores any Set-Cookie the backend returns. The
// [RefreshCoordinator] turns a 401 into at most one token refresh no matter
// how many calls fail at once: the first caller refreshes, everybody else
// queues, and queued calls are replayed once in the order they arrived. The
// circuit-breaker stage recognises the backend's 429 CIRCUIT_BREAKER_OPEN
// signal and sends the user to login without refreshing.
//
// # Architecture boundaries
//
// This package owns transport, cookies, and the refresh protocol. It does NOT
// hold the authenticated profile; the session package does, and is told about
// forced logouts through [Config.OnRedirect].
//
// # What this package must NOT do
//
//   - Import nextcrm or session (no upward imports).
//   - Retry any call more than once.
//   - Interpret error statuses other than 401 and the circuit-breaker 429.
package gateway
