package nextcrm

import (
	"io"

	"github.com/MrEthical07/nextcrm/internal/events"
	"go.uber.org/zap"
)

// Event is one gateway or session occurrence delivered to an EventSink.
type Event = events.Event

// EventSink receives events from the Client's dispatcher.
type EventSink = events.Sink

type (
	NoOpSink       = events.NoOpSink
	ChannelSink    = events.ChannelSink
	JSONWriterSink = events.JSONWriterSink
	ZapSink        = events.ZapSink
)

const (
	EventRequestUnauthorized = events.TypeRequestUnauthorized
	EventRefreshStarted      = events.TypeRefreshStarted
	EventRefreshSucceeded    = events.TypeRefreshSucceeded
	EventRefreshFailed       = events.TypeRefreshFailed
	EventRequestQueued       = events.TypeRequestQueued
	EventRequestReplayed     = events.TypeRequestReplayed
	EventCircuitBreakerOpen  = events.TypeCircuitBreakerOpen
	EventLoginRedirect       = events.TypeLoginRedirect
	EventSessionLogin        = events.TypeSessionLogin
	EventSessionLoginFailed  = events.TypeSessionLoginFailed
	EventSessionRegister     = events.TypeSessionRegister
	EventSessionLogout       = events.TypeSessionLogout
	EventSessionChecked      = events.TypeSessionChecked
	EventSessionCleared      = events.TypeSessionCleared
	EventProfileUpdated      = events.TypeProfileUpdated
)

func NewChannelSink(buffer int) *ChannelSink {
	return events.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return events.NewJSONWriterSink(w)
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return events.NewZapSink(logger)
}
