// Package fakebackend is an in-process NextCRM backend. It issues real
// signed session cookies, enforces the refresh circuit breaker and serves
// enough business data for the client, its tests, the load generator and
// the demo server to run without the Django deployment.
package fakebackend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/nextcrm/jwt"
	"github.com/MrEthical07/nextcrm/password"
	"go.uber.org/zap"
)

// Seeded account.
const (
	DemoUsername = "trader1"
	DemoPassword = "Secret123"
)

// Cookie names match the real backend.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// CircuitBreakerCode is sent with 429 once refresh is blocked.
const CircuitBreakerCode = "CIRCUIT_BREAKER_OPEN"

type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// BreakerThreshold failed refreshes from one client open the breaker for
	// BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration
	SigningKey       []byte
	// PageSize is the default page size of list endpoints.
	PageSize int
	Logger   *zap.Logger
	// SkipSeed starts with no users and no business data.
	SkipSeed bool
}

func DefaultConfig() Config {
	return Config{
		AccessTTL:        5 * time.Minute,
		RefreshTTL:       24 * time.Hour,
		BreakerThreshold: 5,
		BreakerCooldown:  5 * time.Minute,
		SigningKey:       []byte("nextcrm-fake-backend-signing-key"),
		PageSize:         20,
	}
}

type user struct {
	profile      map[string]any
	id           int64
	username     string
	passwordHash string
	consents     []map[string]any
}

type breaker struct {
	failures int
	until    time.Time
}

// Backend serves the NextCRM REST API. It is an http.Handler.
type Backend struct {
	cfg    Config
	tokens *jwt.Manager
	hasher *password.Argon2
	logger *zap.Logger
	mux    *http.ServeMux

	mu          sync.Mutex
	users       map[int64]*user
	byUsername  map[string]int64
	nextUserID  int64
	liveAccess  map[string]int64
	liveRefresh map[string]int64
	breakers    map[string]*breaker
	data        *dataset

	refreshDelay atomic.Int64
	refreshCalls atomic.Uint64
	refreshOK    atomic.Uint64
	calls        sync.Map
}

func New(cfg Config) (*Backend, error) {
	def := DefaultConfig()
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = def.AccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = def.RefreshTTL
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = def.BreakerThreshold
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = def.BreakerCooldown
	}
	if len(cfg.SigningKey) == 0 {
		cfg.SigningKey = def.SigningKey
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    cfg.SigningKey,
		Issuer:        "nextcrm-fake",
	})
	if err != nil {
		return nil, fmt.Errorf("fakebackend: token manager: %w", err)
	}
	hasher, err := password.NewArgon2(password.FastConfig())
	if err != nil {
		return nil, fmt.Errorf("fakebackend: hasher: %w", err)
	}

	b := &Backend{
		cfg:         cfg,
		tokens:      tokens,
		hasher:      hasher,
		logger:      cfg.Logger,
		users:       make(map[int64]*user),
		byUsername:  make(map[string]int64),
		liveAccess:  make(map[string]int64),
		liveRefresh: make(map[string]int64),
		breakers:    make(map[string]*breaker),
		data:        newDataset(),
	}
	if !cfg.SkipSeed {
		if _, err := b.AddUser(DemoUsername, DemoPassword, map[string]any{
			"email":      "trader1@nextcrm.test",
			"first_name": "Ana",
			"last_name":  "Trader",
			"company":    "NextCRM Trading",
			"position":   "Senior Trader",
		}); err != nil {
			return nil, err
		}
		b.data.seed()
	}
	b.routes()
	return b, nil
}

func (b *Backend) routes() {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login/", b.handleLogin)
	mux.HandleFunc("POST /api/auth/register/", b.handleRegister)
	mux.HandleFunc("POST /api/auth/token/refresh/", b.handleRefresh)
	mux.HandleFunc("POST /api/auth/logout/", b.authed(b.handleLogout))
	mux.HandleFunc("GET /api/auth/profile/", b.authed(b.handleProfile))
	mux.HandleFunc("PUT /api/auth/profile/", b.authed(b.handleProfileUpdate))
	mux.HandleFunc("PATCH /api/auth/profile/", b.authed(b.handleProfileUpdate))
	mux.HandleFunc("POST /api/auth/password/change/", b.authed(b.handlePasswordChange))
	mux.HandleFunc("GET /api/auth/gdpr/consent/", b.authed(b.handleConsentList))
	mux.HandleFunc("POST /api/auth/gdpr/consent/", b.authed(b.handleConsentCreate))
	mux.HandleFunc("GET /api/auth/gdpr/export/", b.authed(b.handleExport))
	mux.HandleFunc("DELETE /api/auth/account/delete/", b.authed(b.handleDeleteAccount))

	b.crmRoutes(mux)
	b.mux = mux
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.count(r.URL.Path)
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	b.mux.ServeHTTP(rec, r)
	b.logger.Debug("fakebackend: request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("duration", time.Since(start)),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

/*
====================================
CONTROLS
====================================
*/

// AddUser registers an account and returns its id.
func (b *Backend) AddUser(username, pw string, fields map[string]any) (int64, error) {
	hash, err := b.hasher.Hash(pw)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(username, hash, fields)
}

func (b *Backend) addUserLocked(username, hash string, fields map[string]any) (int64, error) {
	if _, exists := b.byUsername[strings.ToLower(username)]; exists {
		return 0, errors.New("fakebackend: username taken")
	}
	b.nextUserID++
	id := b.nextUserID
	now := time.Now().UTC().Format(time.RFC3339)
	profile := map[string]any{
		"id":             id,
		"username":       username,
		"email":          "",
		"first_name":     "",
		"last_name":      "",
		"phone":          "",
		"company":        "",
		"position":       "",
		"timezone":       "UTC",
		"date_joined":    now,
		"gdpr_consent":   false,
		"is_mfa_enabled": false,
	}
	for k, v := range fields {
		profile[k] = v
	}
	b.users[id] = &user{
		profile:      profile,
		id:           id,
		username:     username,
		passwordHash: hash,
	}
	b.byUsername[strings.ToLower(username)] = id
	return id, nil
}

// ExpireAccessTokens invalidates every issued access token. The next call
// of each client gets a 401 and has to refresh.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	b.liveAccess = make(map[string]int64)
	b.mu.Unlock()
}

// RevokeRefreshTokens invalidates every issued refresh token, so the next
// refresh fails with INVALID_REFRESH_TOKEN.
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	b.liveRefresh = make(map[string]int64)
	b.mu.Unlock()
}

// SetRefreshDelay makes the refresh endpoint wait d before answering.
func (b *Backend) SetRefreshDelay(d time.Duration) {
	b.refreshDelay.Store(int64(d))
}

// TripBreaker opens the refresh circuit breaker for every client.
func (b *Backend) TripBreaker() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.breakers["*"] = &breaker{failures: b.cfg.BreakerThreshold, until: time.Now().Add(b.cfg.BreakerCooldown)}
}

func (b *Backend) ResetBreaker() {
	b.mu.Lock()
	b.breakers = make(map[string]*breaker)
	b.mu.Unlock()
}

// RefreshCalls counts every hit on the refresh endpoint.
func (b *Backend) RefreshCalls() uint64 {
	return b.refreshCalls.Load()
}

// Refreshes counts successful refreshes.
func (b *Backend) Refreshes() uint64 {
	return b.refreshOK.Load()
}

// Calls returns how many requests hit path.
func (b *Backend) Calls(path string) uint64 {
	v, ok := b.calls.Load(path)
	if !ok {
		return 0
	}
	return v.(*atomic.Uint64).Load()
}

func (b *Backend) count(path string) {
	v, _ := b.calls.LoadOrStore(path, new(atomic.Uint64))
	v.(*atomic.Uint64).Add(1)
}

/*
====================================
RESPONSE HELPERS
====================================
*/

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	body := map[string]any{"error": msg}
	if code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}

func writeFieldErrors(w http.ResponseWriter, errs map[string][]string) {
	writeJSON(w, http.StatusBadRequest, errs)
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
