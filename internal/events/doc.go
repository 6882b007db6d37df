// Package events implements async dispatching of session and gateway events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record with timestamp, type, request id, path, status, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the gateway stages and the session store do that.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import nextcrm or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package events
