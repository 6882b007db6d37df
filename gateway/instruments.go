package gateway

import (
	"context"

	"github.com/MrEthical07/nextcrm/internal/events"
	"github.com/MrEthical07/nextcrm/internal/metrics"
	"go.uber.org/zap"
)

type instruments struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	events  events.Emitter
}

func newInstruments(logger *zap.Logger, m *metrics.Metrics, e events.Emitter) instruments {
	if logger == nil {
		logger = zap.NewNop()
	}
	return instruments{logger: logger, metrics: m, events: e}
}

func (i instruments) inc(id metrics.ID) {
	i.metrics.Inc(id)
}

func (i instruments) emit(ctx context.Context, ev events.Event) {
	if i.events == nil {
		return
	}
	if ev.RequestID == "" {
		ev.RequestID = RequestIDFromContext(ctx)
	}
	i.events.Emit(ctx, ev)
}

func requestEvent(ctx context.Context, eventType string, success bool, req *Request) events.Event {
	ev := events.New(eventType, success)
	ev.RequestID = RequestIDFromContext(ctx)
	if req != nil {
		ev.Method = req.Method
		ev.Path = req.Path
	}
	return ev
}
