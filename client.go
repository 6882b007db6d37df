package nextcrm

import (
	"context"
	"net/url"
	"sync/atomic"

	"github.com/MrEthical07/nextcrm/gateway"
	"github.com/MrEthical07/nextcrm/internal/events"
	"github.com/MrEthical07/nextcrm/internal/metrics"
	"github.com/MrEthical07/nextcrm/session"
	"go.uber.org/zap"
)

// Client owns one Gateway and one session Store. Build one per signed-in
// user; a Client is safe for concurrent use.
type Client struct {
	config     Config
	logger     *zap.Logger
	gw         *gateway.Gateway
	session    *session.Store
	metrics    *metrics.Metrics
	dispatcher *events.Dispatcher

	closed atomic.Bool
}

var _ session.Backend = (*Client)(nil)

// Session returns the store holding the current authentication state.
func (c *Client) Session() *session.Store {
	return c.session
}

// Gateway returns the request gateway for calls the Client does not wrap.
func (c *Client) Gateway() *gateway.Gateway {
	return c.gw
}

// Config returns a copy of the configuration the Client was built with.
func (c *Client) Config() Config {
	return cloneConfig(c.config)
}

// Close stops the event dispatcher after draining buffered events. Calls
// made after Close fail with ErrClientClosed.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.closed.Swap(true) {
		return
	}
	c.dispatcher.Close()
}

// EventsDropped returns how many events were discarded because the
// dispatcher buffer was full.
func (c *Client) EventsDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.dispatcher.Dropped()
}

// SessionGauges is a point-in-time view of one Client's session and refresh
// state. Exporters publish it as gauges next to the counters.
type SessionGauges struct {
	Authenticated   bool
	Trusted         bool
	RefreshInFlight bool
	QueueDepth      int
	Refreshes       uint64
}

func (c *Client) SessionGauges() SessionGauges {
	if c == nil {
		return SessionGauges{}
	}
	coord := c.gw.Coordinator()
	return SessionGauges{
		Authenticated:   c.session.IsAuthenticated(),
		Trusted:         c.session.Trusted(),
		RefreshInFlight: coord.InFlight(),
		QueueDepth:      coord.Pending(),
		Refreshes:       coord.Refreshes(),
	}
}

func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.gw.DoJSON(ctx, method, path, query, body, out)
}
