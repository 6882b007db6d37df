package gateway

import (
	"context"
	"sync/atomic"

	"github.com/MrEthical07/nextcrm/internal/events"
	"github.com/MrEthical07/nextcrm/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Reason says why the user is being sent to login.
type Reason string

const (
	ReasonCircuitBreaker      Reason = "circuit_breaker_open"
	ReasonRefreshRejected     Reason = "refresh_rejected"
	ReasonNoRefreshCredential Reason = "no_refresh_credential"
	ReasonRefreshFailed       Reason = "refresh_failed"
)

// Navigator moves the user to the login entry point. A browser would change
// location; a CLI prints a hint; a server marks the session for redirect.
type Navigator interface {
	NavigateToLogin(ctx context.Context, reason Reason) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, reason Reason) error

func (f NavigatorFunc) NavigateToLogin(ctx context.Context, reason Reason) error {
	return f(ctx, reason)
}

type nopNavigator struct{}

func (nopNavigator) NavigateToLogin(context.Context, Reason) error { return nil }

// LoginRedirector clears session cookies and navigates to login. Concurrent
// redirects collapse into a single navigation.
type LoginRedirector struct {
	clearCookies func()
	onRedirect   func(ctx context.Context, reason Reason)
	navigator    Navigator
	group        singleflight.Group
	count        atomic.Uint64
	inst         instruments
}

// RedirectorConfig wires a LoginRedirector.
type RedirectorConfig struct {
	ClearCookies func()
	OnRedirect   func(ctx context.Context, reason Reason)
	Navigator    Navigator
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Events       events.Emitter
}

func NewLoginRedirector(cfg RedirectorConfig) *LoginRedirector {
	nav := cfg.Navigator
	if nav == nil {
		nav = nopNavigator{}
	}
	return &LoginRedirector{
		clearCookies: cfg.ClearCookies,
		onRedirect:   cfg.OnRedirect,
		navigator:    nav,
		inst:         newInstruments(cfg.Logger, cfg.Metrics, cfg.Events),
	}
}

// Redirect clears cookies first, then navigates. Callers arriving while a
// redirect is running share its result.
func (r *LoginRedirector) Redirect(ctx context.Context, reason Reason) {
	if r == nil {
		return
	}
	_, _, _ = r.group.Do("login", func() (any, error) {
		if r.clearCookies != nil {
			r.clearCookies()
		}
		if r.onRedirect != nil {
			r.onRedirect(ctx, reason)
		}
		err := r.navigator.NavigateToLogin(ctx, reason)
		if err != nil {
			r.inst.logger.Warn("nextcrm: navigate to login failed",
				zap.String("reason", string(reason)),
				zap.Error(err),
			)
		}

		r.count.Add(1)
		r.inst.inc(metrics.LoginRedirect)
		ev := events.New(events.TypeLoginRedirect, err == nil)
		ev.Metadata = map[string]string{"reason": string(reason)}
		if err != nil {
			ev.Error = err.Error()
		}
		r.inst.emit(ctx, ev)
		return nil, nil
	})
}

// Count returns how many navigations have run.
func (r *LoginRedirector) Count() uint64 {
	if r == nil {
		return 0
	}
	return r.count.Load()
}
