package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/nextcrm/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	state   session.State
	trusted bool
	checked session.State
	checks  int
}

func (f *fakeStore) State() session.State { return f.state }
func (f *fakeStore) Trusted() bool        { return f.trusted }
func (f *fakeStore) CheckAuth(context.Context) session.State {
	f.checks++
	f.state = f.checked
	f.trusted = f.checked.IsAuthenticated
	return f.checked
}

func signedIn() session.State {
	return session.State{
		Profile:         &session.UserProfile{Username: "trader1"},
		IsAuthenticated: true,
		Phase:           session.PhaseAuthenticated,
		Validated:       true,
	}
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := ProfileFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(p.Username))
	})
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRequireSessionTrustedSkipsProbe(t *testing.T) {
	store := &fakeStore{state: signedIn(), trusted: true}
	rec := serve(RequireSession(store, GuardOptions{})(okHandler(t)), "/contracts")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trader1", rec.Body.String())
	assert.Zero(t, store.checks)
}

func TestRequireSessionProbesUntrustedStore(t *testing.T) {
	store := &fakeStore{state: session.State{IsAuthenticated: true}, checked: signedIn()}
	rec := serve(RequireSession(store, GuardOptions{})(okHandler(t)), "/contracts")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.checks)
}

func TestRequireSessionRedirectsWithReturnURL(t *testing.T) {
	store := &fakeStore{checked: session.State{Phase: session.PhaseAnonymous}}
	rec := serve(RequireSession(store, GuardOptions{})(okHandler(t)), "/contracts/42?tab=notes")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?returnUrl=%2Fcontracts%2F42%3Ftab%3Dnotes", rec.Header().Get("Location"))
}

func TestRequireStrictAlwaysProbes(t *testing.T) {
	store := &fakeStore{state: signedIn(), trusted: true, checked: signedIn()}
	h := RequireStrict(store, GuardOptions{})(okHandler(t))
	serve(h, "/dashboard")
	serve(h, "/dashboard")

	assert.Equal(t, 2, store.checks)
}

func TestRequireSessionNilStore(t *testing.T) {
	rec := serve(RequireSession(nil, GuardOptions{LoginPath: "/signin"})(okHandler(t)), "/dashboard")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/signin?returnUrl=%2Fdashboard", rec.Header().Get("Location"))
}

func TestRedirectAuthenticated(t *testing.T) {
	page := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("login form"))
	})

	store := &fakeStore{state: signedIn(), trusted: true}
	rec := serve(RedirectAuthenticated(store, GuardOptions{})(page), "/login")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, DefaultHomePath, rec.Header().Get("Location"))

	restored := &fakeStore{state: session.State{IsAuthenticated: true}}
	rec = serve(RedirectAuthenticated(restored, GuardOptions{})(page), "/login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, restored.checks)
}

func TestLoginURL(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{"empty", "", "/login"},
		{"root", "/", "/login"},
		{"login page", "/login?returnUrl=%2Fx", "/login"},
		{"register page", "/register", "/login"},
		{"protected", "/counterparties", "/login?returnUrl=%2Fcounterparties"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, LoginURL(tc.uri, GuardOptions{}))
		})
	}
}
