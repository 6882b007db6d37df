package events

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types emitted by the gateway and the session store.
const (
	TypeRequestUnauthorized = "request_unauthorized"
	TypeRefreshStarted      = "refresh_started"
	TypeRefreshSucceeded    = "refresh_succeeded"
	TypeRefreshFailed       = "refresh_failed"
	TypeRequestQueued       = "request_queued"
	TypeRequestReplayed     = "request_replayed"
	TypeCircuitBreakerOpen  = "circuit_breaker_open"
	TypeLoginRedirect       = "login_redirect"
	TypeSessionLogin        = "session_login"
	TypeSessionLoginFailed  = "session_login_failed"
	TypeSessionRegister     = "session_register"
	TypeSessionLogout       = "session_logout"
	TypeSessionChecked      = "session_checked"
	TypeSessionCleared      = "session_cleared"
	TypeProfileUpdated      = "profile_updated"
)

// Event is the canonical event model used by internal dispatching and root APIs.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	RequestID string            `json:"request_id,omitempty"`
	Method    string            `json:"method,omitempty"`
	Path      string            `json:"path,omitempty"`
	Status    int               `json:"status,omitempty"`
	Username  string            `json:"username,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Emitter is implemented by anything that accepts events. Dispatcher and every
// Sink satisfy it.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// Sink receives emitted events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// ZapSink logs each event as one structured line. Failed events log at Warn.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}
	fields := make([]zap.Field, 0, 8+len(event.Metadata))
	fields = append(fields,
		zap.String("event_type", event.EventType),
		zap.Time("timestamp", event.Timestamp),
		zap.Bool("success", event.Success),
	)
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if event.Method != "" {
		fields = append(fields, zap.String("method", event.Method))
	}
	if event.Path != "" {
		fields = append(fields, zap.String("path", event.Path))
	}
	if event.Status != 0 {
		fields = append(fields, zap.Int("status", event.Status))
	}
	if event.Username != "" {
		fields = append(fields, zap.String("username", event.Username))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	for k, v := range event.Metadata {
		fields = append(fields, zap.String(k, v))
	}

	if event.Success {
		s.logger.Info("nextcrm event", fields...)
		return
	}
	s.logger.Warn("nextcrm event", fields...)
}

// New stamps an event of the given type with the current time.
func New(eventType string, success bool) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Success:   success,
	}
}
