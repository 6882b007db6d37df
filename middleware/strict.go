package middleware

import "net/http"

// RequireStrict asks the backend on every request, so a session revoked
// elsewhere is noticed immediately at the cost of one probe per request.
func RequireStrict(store SessionSource, opts GuardOptions) func(http.Handler) http.Handler {
	return guard(store, opts, true)
}
