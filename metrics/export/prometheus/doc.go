// Package prometheus renders nextcrm Client metrics in Prometheus text
// exposition format.
//
// [NewExporter] accepts a *nextcrm.Client and exposes an [http.Handler] for
// scraping. Counters are named nextcrm_*_total; the two histograms are
// nextcrm_request_latency_seconds and nextcrm_refresh_latency_seconds. A
// *nextcrm.Client also yields the nextcrm_session_* and nextcrm_refresh_*
// gauges.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate client state.
package prometheus
