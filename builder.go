package nextcrm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/nextcrm/gateway"
	"github.com/MrEthical07/nextcrm/internal/events"
	"github.com/MrEthical07/nextcrm/internal/metrics"
	"github.com/MrEthical07/nextcrm/session"
	"go.uber.org/zap"
)

// Builder assembles a Client. A Builder is configured during
// initialization and can Build exactly once.
type Builder struct {
	config Config

	logger     *zap.Logger
	httpClient *http.Client
	jar        http.CookieJar
	navigator  gateway.Navigator
	persister  session.Persister
	eventSink  EventSink
	transport  gateway.Handler
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.Gateway.BaseURL = baseURL
	return b
}

// WithLogger sets the zap logger used by the gateway and the session store.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithJar supplies the cookie jar holding the session cookies. Callers that
// persist cookies across processes pass their own jar.
func (b *Builder) WithJar(jar http.CookieJar) *Builder {
	b.jar = jar
	return b
}

// WithNavigator sets where redirect-to-login sends the user.
func (b *Builder) WithNavigator(nav gateway.Navigator) *Builder {
	b.navigator = nav
	return b
}

// WithPersister sets where the session snapshot is kept between runs.
func (b *Builder) WithPersister(p session.Persister) *Builder {
	b.persister = p
	return b
}

// WithEventSink sets the event destination and enables the dispatcher.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	b.config.Events.Enabled = sink != nil
	return b
}

// WithTransport replaces the HTTP round trip with h.
func (b *Builder) WithTransport(h gateway.Handler) *Builder {
	b.transport = h
	return b
}

func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Client. When
// Session.RestoreOnBuild is set the persisted snapshot is loaded; it stays
// untrusted until Session().CheckAuth succeeds.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, w := range cfg.Lint() {
		logger.Warn("nextcrm: config lint", zap.String("code", w.Code), zap.String("detail", w.Message))
	}

	// -------- INSTRUMENTS --------
	m := metrics.New(metrics.Config{
		Enabled:                 cfg.Metrics.Enabled,
		EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
	})
	dispatcher := events.NewDispatcher(events.Config{
		Enabled:    cfg.Events.Enabled,
		BufferSize: cfg.Events.BufferSize,
		DropIfFull: cfg.Events.DropIfFull,
	}, b.eventSink)

	c := &Client{
		config:     cfg,
		logger:     logger,
		metrics:    m,
		dispatcher: dispatcher,
	}

	// -------- GATEWAY --------
	gw, err := gateway.New(gateway.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		RequestTimeout: cfg.Gateway.RequestTimeout,
		RefreshTimeout: cfg.Gateway.RefreshTimeout,
		RefreshPath:    cfg.Gateway.RefreshPath,
		ProbePath:      cfg.Gateway.ProbePath,
		UserAgent:      cfg.Gateway.UserAgent,
		HTTPClient:     b.httpClient,
		Jar:            b.jar,
		Navigator:      b.navigator,
		Logger:         logger,
		Metrics:        m,
		Events:         dispatcher,
		Transport:      b.transport,
		OnRedirect: func(ctx context.Context, _ gateway.Reason) {
			c.session.Clear(ctx)
		},
		Now: b.now,
	})
	if err != nil {
		dispatcher.Close()
		return nil, err
	}
	c.gw = gw

	// -------- SESSION STORE --------
	c.session = session.NewStore(c,
		session.WithPersister(b.persister),
		session.WithLogger(logger),
		session.WithMetrics(m),
		session.WithEvents(dispatcher),
	)
	if cfg.Session.RestoreOnBuild {
		if err := c.session.Restore(context.Background()); err != nil && !errors.Is(err, session.ErrSnapshotCorrupt) {
			logger.Warn("nextcrm: restore session snapshot failed", zap.Error(err))
		}
	}

	b.built = true

	return c, nil
}
