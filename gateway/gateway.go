package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/nextcrm/internal/events"
	"github.com/MrEthical07/nextcrm/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Default timeouts. Every call settles within RequestTimeout; a refresh is
// bounded by RefreshTimeout independently of the caller that started it.
const (
	DefaultRequestTimeout = 15 * time.Second
	DefaultRefreshTimeout = 10 * time.Second
)

// Config configures a Gateway. Only BaseURL is required.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	RefreshTimeout time.Duration
	RefreshPath    string
	ProbePath      string
	UserAgent      string

	HTTPClient *http.Client
	Jar        http.CookieJar
	Navigator  Navigator

	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Events  events.Emitter

	// Transport replaces the HTTP round trip. Tests use it to script
	// backend responses.
	Transport Handler
	// OnRedirect runs after cookies are cleared and before navigation.
	OnRedirect func(ctx context.Context, reason Reason)
	Now        func() time.Time
}

// Gateway is the single entry point for backend calls. It owns the cookie
// jar, the refresh coordinator and the login redirector; one Gateway serves
// one signed-in user.
type Gateway struct {
	base           *url.URL
	requestTimeout time.Duration
	jar            http.CookieJar
	creds          *Credentials
	coordinator    *RefreshCoordinator
	redirector     *LoginRedirector
	handler        Handler
	inst           instruments
}

// New assembles the pipeline: logging, circuit breaker, refresh
// coordination, credentials, transport.
func New(cfg Config) (*Gateway, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultRefreshTimeout
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = DefaultRefreshPath
	}
	if cfg.ProbePath == "" {
		cfg.ProbePath = DefaultProbePath
	}
	if cfg.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("gateway: cookie jar: %w", err)
		}
		cfg.Jar = jar
	}
	inst := newInstruments(cfg.Logger, cfg.Metrics, cfg.Events)

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	if cfg.UserAgent != "" {
		headers.Set("User-Agent", cfg.UserAgent)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = NewTransport(base, cfg.HTTPClient)
	}

	creds := newCredentials(base, cfg.Jar, headers, cfg.RefreshPath, cfg.Now)
	redirector := NewLoginRedirector(RedirectorConfig{
		ClearCookies: creds.Clear,
		OnRedirect:   cfg.OnRedirect,
		Navigator:    cfg.Navigator,
		Logger:       inst.logger,
		Metrics:      cfg.Metrics,
		Events:       cfg.Events,
	})
	coordinator := NewRefreshCoordinator(RefreshConfig{
		RefreshPath: cfg.RefreshPath,
		ProbePath:   cfg.ProbePath,
		Timeout:     cfg.RefreshTimeout,
		CanRefresh:  creds.HasRefreshCredential,
		Redirector:  redirector,
		Logger:      inst.logger,
		Metrics:     cfg.Metrics,
		Events:      cfg.Events,
	})

	inner := Chain(transport, creds.Middleware)
	handler := Chain(inner,
		Logging(inst.logger),
		CircuitBreaker(redirector, inst),
		coordinator.Middleware,
	)

	return &Gateway{
		base:           base,
		requestTimeout: cfg.RequestTimeout,
		jar:            cfg.Jar,
		creds:          creds,
		coordinator:    coordinator,
		redirector:     redirector,
		handler:        handler,
		inst:           inst,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("gateway: base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gateway: base URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("gateway: base URL has no host")
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// Do sends req through the pipeline. Statuses of 400 and above come back as
// *Error; the response is returned alongside for callers that need headers.
func (g *Gateway) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("gateway: nil request")
	}
	if RequestIDFromContext(ctx) == "" {
		ctx = WithRequestID(ctx, uuid.NewString())
	}
	ctx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	g.inst.inc(metrics.RequestTotal)
	start := time.Now()
	resp, err := g.handler.Do(ctx, req)
	g.inst.metrics.Observe(metrics.RequestLatency, time.Since(start))

	if err != nil {
		g.inst.inc(metrics.RequestFailure)
		if errors.Is(err, ErrTransport) {
			g.inst.inc(metrics.TransportError)
		}
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		g.inst.inc(metrics.RequestFailure)
		return resp, NewResponseError(resp)
	}
	return resp, nil
}

// DoJSON sends body as JSON and decodes a successful response into out.
// Either may be nil.
func (g *Gateway) DoJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := NewRequest(method, path, body)
	if err != nil {
		return err
	}
	req.Query = query
	resp, err := g.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// BaseURL returns a copy of the backend base URL.
func (g *Gateway) BaseURL() *url.URL {
	u := *g.base
	return &u
}

func (g *Gateway) Jar() http.CookieJar {
	return g.jar
}

// Cookie returns a session cookie value held for the backend.
func (g *Gateway) Cookie(name string) (string, bool) {
	return g.creds.Cookie(name)
}

func (g *Gateway) HasRefreshCredential() bool {
	return g.creds.HasRefreshCredential()
}

// ClearSessionCookies drops both session cookies without navigating.
func (g *Gateway) ClearSessionCookies() {
	g.creds.Clear()
}

func (g *Gateway) Redirector() *LoginRedirector {
	return g.redirector
}

func (g *Gateway) Coordinator() *RefreshCoordinator {
	return g.coordinator
}
