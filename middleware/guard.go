package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/nextcrm/session"
)

// Default routes of the dashboard.
const (
	DefaultLoginPath    = "/login"
	DefaultRegisterPath = "/register"
	DefaultHomePath     = "/dashboard"
)

// ReturnURLParam carries the page an anonymous user tried to open.
const ReturnURLParam = "returnUrl"

// SessionSource is the part of *session.Store the guards use.
type SessionSource interface {
	State() session.State
	Trusted() bool
	CheckAuth(ctx context.Context) session.State
}

// GuardOptions configures the redirect targets. Zero values use the
// defaults.
type GuardOptions struct {
	LoginPath    string
	RegisterPath string
	HomePath     string
}

func (o GuardOptions) withDefaults() GuardOptions {
	if o.LoginPath == "" {
		o.LoginPath = DefaultLoginPath
	}
	if o.RegisterPath == "" {
		o.RegisterPath = DefaultRegisterPath
	}
	if o.HomePath == "" {
		o.HomePath = DefaultHomePath
	}
	return o
}

type profileContextKey struct{}

// ProfileFromContext returns the profile injected by a guard.
func ProfileFromContext(ctx context.Context) (*session.UserProfile, bool) {
	p, ok := ctx.Value(profileContextKey{}).(*session.UserProfile)
	return p, ok && p != nil
}

// RequireSession lets a request through when the store holds a confirmed
// session. An unconfirmed or empty store is checked against the backend
// first.
func RequireSession(store SessionSource, opts GuardOptions) func(http.Handler) http.Handler {
	return guard(store, opts, false)
}

func guard(store SessionSource, opts GuardOptions, strict bool) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				redirectToLogin(w, r, opts)
				return
			}

			st := store.State()
			if strict || !store.Trusted() {
				st = store.CheckAuth(r.Context())
			}
			if !st.IsAuthenticated || st.Profile == nil {
				redirectToLogin(w, r, opts)
				return
			}

			ctx := context.WithValue(r.Context(), profileContextKey{}, st.Profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RedirectAuthenticated sends signed-in users from login and register pages
// to the home path. Only a confirmed session counts; a restored snapshot
// still sees the page.
func RedirectAuthenticated(store SessionSource, opts GuardOptions) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store != nil && store.Trusted() {
				http.Redirect(w, r, opts.HomePath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginURL builds the login redirect for a request path. The login and
// register pages never become a return target.
func LoginURL(requestURI string, opts GuardOptions) string {
	opts = opts.withDefaults()
	path := requestURI
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if requestURI == "" || path == "/" || path == opts.LoginPath || path == opts.RegisterPath {
		return opts.LoginPath
	}
	return opts.LoginPath + "?" + url.Values{ReturnURLParam: {requestURI}}.Encode()
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, opts GuardOptions) {
	http.Redirect(w, r, LoginURL(r.URL.RequestURI(), opts), http.StatusFound)
}
