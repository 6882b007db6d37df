package gateway

import (
	"context"
	"net/http"
	"testing"

	"github.com/MrEthical07/nextcrm/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const circuitBody = `{"error":"Too many failed refresh attempts. Please try again later.","code":"CIRCUIT_BREAKER_OPEN","retry_after":300}`

func TestIsCircuitBreakerOpen(t *testing.T) {
	assert.True(t, IsCircuitBreakerOpen(jsonResponse(http.StatusTooManyRequests, circuitBody)))
	assert.False(t, IsCircuitBreakerOpen(jsonResponse(http.StatusTooManyRequests, `{"detail":"Request was throttled."}`)))
	assert.False(t, IsCircuitBreakerOpen(jsonResponse(http.StatusBadRequest, circuitBody)))
	assert.False(t, IsCircuitBreakerOpen(nil))
}

func TestCircuitBreakerRedirectsWithoutRefresh(t *testing.T) {
	backend := newScriptedBackend()
	backend.resource = func(string, bool) *Response {
		return jsonResponse(http.StatusTooManyRequests, circuitBody)
	}
	g := newTestGateway(t, backend)
	seedCookie(t, g.Jar(), AccessCookie, "a")
	seedCookie(t, g.Jar(), RefreshCookie, "r")

	_, err := g.Do(context.Background(), get("/api/nextcrm/contracts/"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, uint64(0), g.Coordinator().Refreshes())
	assert.Equal(t, []Reason{ReasonCircuitBreaker}, g.navigator.Reasons())
	assert.Equal(t, uint64(1), g.metrics.Value(metrics.CircuitBreakerOpen))

	_, ok := g.Cookie(AccessCookie)
	assert.False(t, ok)
	_, ok = g.Cookie(RefreshCookie)
	assert.False(t, ok)
}

func TestCircuitBreakerOnRefreshRedirectsOnce(t *testing.T) {
	backend := newScriptedBackend()
	backend.refreshFn = func() *Response {
		return jsonResponse(http.StatusTooManyRequests, circuitBody)
	}
	g := newTestGateway(t, backend)

	_, err := g.Do(context.Background(), get("/api/nextcrm/dashboard/stats/"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.Equal(t, uint64(1), g.Coordinator().Refreshes())
	assert.Equal(t, []Reason{ReasonCircuitBreaker}, g.navigator.Reasons())
}

func TestOtherErrorsPassThrough(t *testing.T) {
	backend := newScriptedBackend()
	backend.resource = func(string, bool) *Response {
		return jsonResponse(http.StatusBadRequest, `{"error":"Search query must be at least 2 characters"}`)
	}
	g := newTestGateway(t, backend)

	resp, err := g.Do(context.Background(), get("/api/nextcrm/search/"))
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Search query must be at least 2 characters", ErrorMessage(err))
	assert.Equal(t, uint64(0), g.Coordinator().Refreshes())
	assert.Empty(t, g.navigator.Reasons())
}
