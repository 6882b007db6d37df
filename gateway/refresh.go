package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/nextcrm/internal/events"
	"github.com/MrEthical07/nextcrm/internal/metrics"
	"go.uber.org/zap"
)

// Default backend paths used by the refresh protocol.
const (
	DefaultRefreshPath = "/api/auth/token/refresh/"
	DefaultProbePath   = "/api/auth/profile/"
)

// RefreshConfig wires a RefreshCoordinator.
type RefreshConfig struct {
	RefreshPath string
	ProbePath   string
	// Timeout bounds the refresh call. It is not tied to the caller that
	// triggered the refresh, since queued calls depend on its outcome.
	Timeout time.Duration
	// Refresher sends the refresh call. Nil uses the stage's next handler.
	Refresher Handler
	// CanRefresh reports whether a refresh credential is held locally.
	CanRefresh func() bool
	Redirector *LoginRedirector
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Events     events.Emitter
}

// waiter is one queued call. issued closes once the call has sent its
// replay or left the queue, whichever comes first.
type waiter struct {
	result chan error
	issued chan struct{}
	once   sync.Once
}

func newWaiter() *waiter {
	return &waiter{
		result: make(chan error, 1),
		issued: make(chan struct{}),
	}
}

func (w *waiter) release() {
	w.once.Do(func() { close(w.issued) })
}

// RefreshCoordinator turns 401 responses into at most one refresh at a time.
// Calls that fail while a refresh is running wait in a FIFO queue and each
// replays its own request exactly once after the refresh succeeds.
type RefreshCoordinator struct {
	refreshPath string
	probePath   string
	timeout     time.Duration
	refresher   Handler
	canRefresh  func() bool
	redirector  *LoginRedirector
	inst        instruments

	mu       sync.Mutex
	inFlight bool
	queue    []*waiter

	refreshes atomic.Uint64
}

func NewRefreshCoordinator(cfg RefreshConfig) *RefreshCoordinator {
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = DefaultRefreshPath
	}
	if cfg.ProbePath == "" {
		cfg.ProbePath = DefaultProbePath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CanRefresh == nil {
		cfg.CanRefresh = func() bool { return true }
	}
	return &RefreshCoordinator{
		refreshPath: cfg.RefreshPath,
		probePath:   cfg.ProbePath,
		timeout:     cfg.Timeout,
		refresher:   cfg.Refresher,
		canRefresh:  cfg.CanRefresh,
		redirector:  cfg.Redirector,
		inst:        newInstruments(cfg.Logger, cfg.Metrics, cfg.Events),
	}
}

// Middleware returns the refresh stage. Retried calls pass through untouched,
// so a second 401 reaches the caller instead of starting another cycle.
func (c *RefreshCoordinator) Middleware(next Handler) Handler {
	refresher := c.refresher
	if refresher == nil {
		refresher = next
	}
	return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
		resp, err := next.Do(ctx, req)
		if err != nil || resp.StatusCode != http.StatusUnauthorized || IsRetried(ctx) {
			return resp, err
		}

		c.inst.inc(metrics.Unauthorized)
		ev := requestEvent(ctx, events.TypeRequestUnauthorized, false, req)
		ev.Status = resp.StatusCode
		c.inst.emit(ctx, ev)

		if samePath(req.Path, c.refreshPath) {
			c.redirector.Redirect(ctx, ReasonRefreshRejected)
			return resp, nil
		}
		if samePath(req.Path, c.probePath) && !c.canRefresh() {
			c.redirector.Redirect(ctx, ReasonNoRefreshCredential)
			return resp, nil
		}

		c.mu.Lock()
		if c.inFlight {
			w := newWaiter()
			c.queue = append(c.queue, w)
			c.mu.Unlock()
			return c.wait(ctx, w, next, req)
		}
		c.inFlight = true
		c.mu.Unlock()

		return c.refreshAndReplay(ctx, next, refresher, req)
	})
}

func (c *RefreshCoordinator) wait(ctx context.Context, w *waiter, next Handler, req *Request) (*Response, error) {
	c.inst.inc(metrics.RequestQueued)
	c.inst.emit(ctx, requestEvent(ctx, events.TypeRequestQueued, true, req))

	select {
	case err := <-w.result:
		if err != nil {
			w.release()
			return nil, err
		}
		c.inst.inc(metrics.RequestReplayed)
		c.inst.emit(ctx, requestEvent(ctx, events.TypeRequestReplayed, true, req))
		retry := req.Clone()
		w.release()
		return next.Do(WithRetried(ctx), retry)
	case <-ctx.Done():
		w.release()
		c.inst.inc(metrics.QueueAbandoned)
		return nil, &Error{Message: ctx.Err().Error(), Err: ctx.Err()}
	}
}

func (c *RefreshCoordinator) refreshAndReplay(ctx context.Context, next, refresher Handler, req *Request) (*Response, error) {
	refreshErr := c.refresh(ctx, refresher)

	c.mu.Lock()
	queued := c.queue
	c.queue = nil
	c.inFlight = false
	c.mu.Unlock()

	if refreshErr != nil {
		failure := fmt.Errorf("%w: %w", ErrSessionExpired, refreshErr)
		for _, w := range queued {
			w.result <- failure
		}

		reason := ReasonRefreshFailed
		switch {
		case refreshErr.Is(ErrCircuitBreakerOpen):
			c.inst.inc(metrics.CircuitBreakerOpen)
			reason = ReasonCircuitBreaker
		case refreshErr.StatusCode == http.StatusUnauthorized:
			reason = ReasonRefreshRejected
		}
		c.redirector.Redirect(ctx, reason)
		return nil, failure
	}

	// Replays are issued in queue order and run concurrently; the call that
	// started the refresh goes last.
	for _, w := range queued {
		w.result <- nil
		<-w.issued
	}
	return next.Do(WithRetried(ctx), req.Clone())
}

func (c *RefreshCoordinator) refresh(ctx context.Context, refresher Handler) *Error {
	c.refreshes.Add(1)
	c.inst.inc(metrics.RefreshStarted)
	c.inst.emit(ctx, events.New(events.TypeRefreshStarted, true))

	rctx, cancel := context.WithTimeout(WithRetried(context.WithoutCancel(ctx)), c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := refresher.Do(rctx, &Request{
		Method: http.MethodPost,
		Path:   c.refreshPath,
		Header: make(http.Header),
	})
	c.inst.metrics.Observe(metrics.RefreshLatency, time.Since(start))

	var apiErr *Error
	switch {
	case err != nil:
		apiErr = asError(err)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		apiErr = NewResponseError(resp)
	}

	if apiErr != nil {
		c.inst.inc(metrics.RefreshFailure)
		ev := events.New(events.TypeRefreshFailed, false)
		ev.Status = apiErr.StatusCode
		ev.Error = apiErr.Text()
		c.inst.emit(ctx, ev)
		c.inst.logger.Warn("nextcrm: token refresh failed",
			zap.String("request_id", RequestIDFromContext(ctx)),
			zap.Int("status", apiErr.StatusCode),
			zap.String("code", apiErr.Code),
			zap.Error(apiErr),
		)
		return apiErr
	}

	c.inst.inc(metrics.RefreshSuccess)
	c.inst.emit(ctx, events.New(events.TypeRefreshSucceeded, true))
	c.inst.logger.Debug("nextcrm: token refreshed",
		zap.String("request_id", RequestIDFromContext(ctx)),
	)
	return nil
}

// Refreshes returns how many refresh calls have been sent.
func (c *RefreshCoordinator) Refreshes() uint64 {
	return c.refreshes.Load()
}

// Pending returns the number of queued calls.
func (c *RefreshCoordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// InFlight reports whether a refresh is running.
func (c *RefreshCoordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}
