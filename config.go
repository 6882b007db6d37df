package nextcrm

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/nextcrm/gateway"
	"github.com/MrEthical07/nextcrm/session"
)

// Config is the full Client configuration. Start from DefaultConfig and
// set Gateway.BaseURL.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Session SessionConfig `yaml:"session"`
	Events  EventsConfig  `yaml:"events"`
	Metrics MetricsConfig `yaml:"metrics"`
}

/*
====================================
GATEWAY CONFIG
====================================
*/

// GatewayConfig controls how calls reach the backend.
type GatewayConfig struct {
	BaseURL string `yaml:"base_url"`
	// RequestTimeout bounds every call, including time spent queued behind
	// a refresh.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`
	RefreshPath    string        `yaml:"refresh_path"`
	ProbePath      string        `yaml:"probe_path"`
	UserAgent      string        `yaml:"user_agent"`
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	// RestoreOnBuild loads the persisted snapshot during Build.
	RestoreOnBuild bool `yaml:"restore_on_build"`
	// RedisPrefix and SnapshotTTL apply to Redis persisters created by
	// NewRedisPersister.
	RedisPrefix string        `yaml:"redis_prefix"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

/*
====================================
EVENTS CONFIG
====================================
*/

type EventsConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Gateway: GatewayConfig{
			RequestTimeout: gateway.DefaultRequestTimeout,
			RefreshTimeout: gateway.DefaultRefreshTimeout,
			RefreshPath:    gateway.DefaultRefreshPath,
			ProbePath:      gateway.DefaultProbePath,
			UserAgent:      "nextcrm-go",
		},
		Session: SessionConfig{
			RestoreOnBuild: true,
			RedisPrefix:    session.SnapshotKey,
			SnapshotTTL:    7 * 24 * time.Hour,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the defaults with baseURL set.
func DefaultConfig(baseURL string) Config {
	cfg := defaultConfig()
	cfg.Gateway.BaseURL = baseURL
	return cfg
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// Validate returns the first configuration problem found.
func (c *Config) Validate() error {
	// Gateway
	if strings.TrimSpace(c.Gateway.BaseURL) == "" {
		return errors.New("Gateway BaseURL is required")
	}
	u, err := url.Parse(c.Gateway.BaseURL)
	if err != nil {
		return fmt.Errorf("Gateway BaseURL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("Gateway BaseURL scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("Gateway BaseURL must include a host")
	}
	if c.Gateway.RequestTimeout <= 0 {
		return errors.New("Gateway RequestTimeout must be > 0")
	}
	if c.Gateway.RefreshTimeout <= 0 {
		return errors.New("Gateway RefreshTimeout must be > 0")
	}
	if !strings.HasPrefix(c.Gateway.RefreshPath, "/") {
		return errors.New("Gateway RefreshPath must start with /")
	}
	if !strings.HasPrefix(c.Gateway.ProbePath, "/") {
		return errors.New("Gateway ProbePath must start with /")
	}
	if c.Gateway.RefreshPath == c.Gateway.ProbePath {
		return errors.New("Gateway RefreshPath and ProbePath must differ")
	}

	// Session
	if c.Session.SnapshotTTL < 0 {
		return errors.New("Session SnapshotTTL must be >= 0")
	}

	// Events
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when Events are enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is an advisory finding. Lint never blocks Build.
type LintWarning struct {
	Code    string
	Message string
}

type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports settings that are valid but likely wrong for production.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings

	if c.Gateway.RequestTimeout > time.Minute {
		ws = append(ws, LintWarning{
			Code:    "timeout_long",
			Message: "RequestTimeout above 1m keeps queued calls waiting on a stuck refresh",
		})
	}
	if c.Gateway.RefreshTimeout > c.Gateway.RequestTimeout {
		ws = append(ws, LintWarning{
			Code:    "refresh_timeout_exceeds_request",
			Message: "RefreshTimeout exceeds RequestTimeout; queued calls time out before the refresh settles",
		})
	}
	if u, err := url.Parse(c.Gateway.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		ws = append(ws, LintWarning{
			Code:    "insecure_base_url",
			Message: "session cookies travel over plain http to a non-loopback host",
		})
	}
	if c.Events.Enabled && c.Events.BufferSize < 16 {
		ws = append(ws, LintWarning{
			Code:    "events_unbuffered",
			Message: "Events BufferSize below 16 drops or blocks under refresh bursts",
		})
	}
	if c.Events.Enabled && !c.Events.DropIfFull {
		ws = append(ws, LintWarning{
			Code:    "events_blocking",
			Message: "Events DropIfFull=false makes a slow sink block API calls",
		})
	}
	if c.Session.SnapshotTTL == 0 {
		ws = append(ws, LintWarning{
			Code:    "snapshot_ttl_unbounded",
			Message: "Redis snapshots never expire",
		})
	}

	return ws
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
