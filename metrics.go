package nextcrm

import "github.com/MrEthical07/nextcrm/internal/metrics"

// MetricID identifies one counter or histogram.
type MetricID = metrics.ID

// MetricsSnapshot is a point-in-time copy of a Client's metrics.
type MetricsSnapshot = metrics.Snapshot

const (
	MetricRequestTotal         = metrics.RequestTotal
	MetricRequestFailure       = metrics.RequestFailure
	MetricTransportError       = metrics.TransportError
	MetricUnauthorized         = metrics.Unauthorized
	MetricRefreshStarted       = metrics.RefreshStarted
	MetricRefreshSuccess       = metrics.RefreshSuccess
	MetricRefreshFailure       = metrics.RefreshFailure
	MetricRequestQueued        = metrics.RequestQueued
	MetricRequestReplayed      = metrics.RequestReplayed
	MetricQueueAbandoned       = metrics.QueueAbandoned
	MetricCircuitBreakerOpen   = metrics.CircuitBreakerOpen
	MetricLoginRedirect        = metrics.LoginRedirect
	MetricLoginSuccess         = metrics.LoginSuccess
	MetricLoginFailure         = metrics.LoginFailure
	MetricRegisterSuccess      = metrics.RegisterSuccess
	MetricRegisterFailure      = metrics.RegisterFailure
	MetricLogout               = metrics.Logout
	MetricLogoutBackendFailure = metrics.LogoutBackendFailure
	MetricSessionCheckSuccess  = metrics.SessionCheckSuccess
	MetricSessionCheckFailure  = metrics.SessionCheckFailure
	MetricProfileUpdateSuccess = metrics.ProfileUpdateSuccess
	MetricProfileUpdateFailure = metrics.ProfileUpdateFailure
	MetricRequestLatency       = metrics.RequestLatency
	MetricRefreshLatency       = metrics.RefreshLatency
)

// MetricCount is the number of metric slots.
const MetricCount = metrics.Count
