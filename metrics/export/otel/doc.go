// Package otel publishes nextcrm Client metrics through an OpenTelemetry
// meter.
//
// [NewExporter] registers an Int64ObservableCounter per counter and an
// Int64ObservableGauge per histogram bucket. A single callback reads
// Client.MetricsSnapshot on each collection cycle. [WithClientLabel] lets
// several Clients share a Meter, one nextcrm.client attribute each.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate client state.
package otel
