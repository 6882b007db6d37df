// Package middleware exposes HTTP guards that route requests by the state of
// a nextcrm session store.
//
// # Guards
//
//   - [RequireSession]: trusts a confirmed session, probes the backend otherwise.
//   - [RequireStrict]: probes the backend on every request.
//   - [RedirectAuthenticated]: keeps signed-in users away from login pages.
//
// Anonymous requests to a guarded route are redirected to the login path with
// a returnUrl query parameter. Authenticated requests carry the profile in
// their context; read it with [ProfileFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into session store calls. It does
// NOT talk to the backend itself; every decision comes from the store's
// state or its CheckAuth result.
package middleware
