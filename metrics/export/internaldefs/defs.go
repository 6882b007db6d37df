package internaldefs

import (
	nextcrm "github.com/MrEthical07/nextcrm"
)

// CounterDef names one counter slot for exporters.
type CounterDef struct {
	ID   nextcrm.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram slot for exporters.
type HistogramDef struct {
	ID   nextcrm.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: nextcrm.MetricRequestTotal, Name: "nextcrm_request_total", Help: "Calls sent through the gateway."},
	{ID: nextcrm.MetricRequestFailure, Name: "nextcrm_request_failure_total", Help: "Calls that ended in an error."},
	{ID: nextcrm.MetricTransportError, Name: "nextcrm_transport_error_total", Help: "Calls that received no response."},
	{ID: nextcrm.MetricUnauthorized, Name: "nextcrm_unauthorized_total", Help: "401 responses seen by the refresh coordinator."},
	{ID: nextcrm.MetricRefreshStarted, Name: "nextcrm_refresh_started_total", Help: "Token refresh calls started."},
	{ID: nextcrm.MetricRefreshSuccess, Name: "nextcrm_refresh_success_total", Help: "Successful token refreshes."},
	{ID: nextcrm.MetricRefreshFailure, Name: "nextcrm_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: nextcrm.MetricRequestQueued, Name: "nextcrm_request_queued_total", Help: "Calls queued behind an in-flight refresh."},
	{ID: nextcrm.MetricRequestReplayed, Name: "nextcrm_request_replayed_total", Help: "Queued calls replayed after a refresh."},
	{ID: nextcrm.MetricQueueAbandoned, Name: "nextcrm_queue_abandoned_total", Help: "Queued calls whose context ended before the refresh."},
	{ID: nextcrm.MetricCircuitBreakerOpen, Name: "nextcrm_circuit_breaker_open_total", Help: "Circuit breaker responses from the backend."},
	{ID: nextcrm.MetricLoginRedirect, Name: "nextcrm_login_redirect_total", Help: "Redirects to the login view."},
	{ID: nextcrm.MetricLoginSuccess, Name: "nextcrm_login_success_total", Help: "Successful logins."},
	{ID: nextcrm.MetricLoginFailure, Name: "nextcrm_login_failure_total", Help: "Failed logins."},
	{ID: nextcrm.MetricRegisterSuccess, Name: "nextcrm_register_success_total", Help: "Successful registrations."},
	{ID: nextcrm.MetricRegisterFailure, Name: "nextcrm_register_failure_total", Help: "Failed registrations."},
	{ID: nextcrm.MetricLogout, Name: "nextcrm_logout_total", Help: "Logouts."},
	{ID: nextcrm.MetricLogoutBackendFailure, Name: "nextcrm_logout_backend_failure_total", Help: "Logouts the backend did not acknowledge."},
	{ID: nextcrm.MetricSessionCheckSuccess, Name: "nextcrm_session_check_success_total", Help: "Session checks that confirmed a user."},
	{ID: nextcrm.MetricSessionCheckFailure, Name: "nextcrm_session_check_failure_total", Help: "Session checks that ended anonymous."},
	{ID: nextcrm.MetricProfileUpdateSuccess, Name: "nextcrm_profile_update_success_total", Help: "Successful profile updates."},
	{ID: nextcrm.MetricProfileUpdateFailure, Name: "nextcrm_profile_update_failure_total", Help: "Failed profile updates."},
}

var HistogramDefs = []HistogramDef{
	{ID: nextcrm.MetricRequestLatency, Name: "nextcrm_request_latency_seconds", Help: "Gateway call latency, queue time included."},
	{ID: nextcrm.MetricRefreshLatency, Name: "nextcrm_refresh_latency_seconds", Help: "Token refresh latency."},
}

// GaugeDef names one value read from [nextcrm.SessionGauges].
type GaugeDef struct {
	Name  string
	Help  string
	Value func(nextcrm.SessionGauges) int64
}

// GaugeDefs lists the session gauges in exposition order.
var GaugeDefs = []GaugeDef{
	{Name: "nextcrm_session_authenticated", Help: "1 when the store holds an authenticated session.", Value: func(g nextcrm.SessionGauges) int64 { return boolGauge(g.Authenticated) }},
	{Name: "nextcrm_session_trusted", Help: "1 when the backend confirmed the session in this process.", Value: func(g nextcrm.SessionGauges) int64 { return boolGauge(g.Trusted) }},
	{Name: "nextcrm_refresh_in_flight", Help: "1 while a token refresh is running.", Value: func(g nextcrm.SessionGauges) int64 { return boolGauge(g.RefreshInFlight) }},
	{Name: "nextcrm_refresh_queue_depth", Help: "Calls waiting for the in-flight refresh.", Value: func(g nextcrm.SessionGauges) int64 { return int64(g.QueueDepth) }},
}

// GaugeSource is implemented by sources that can report session gauges.
// *nextcrm.Client does.
type GaugeSource interface {
	SessionGauges() nextcrm.SessionGauges
}

func boolGauge(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// HistogramBounds are the upper bounds of the eight latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names the buckets where a label value cannot be used.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// EventsDroppedName is the counter for events lost to a full dispatcher
// buffer.
const EventsDroppedName = "nextcrm_events_dropped_total"

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with
// zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
