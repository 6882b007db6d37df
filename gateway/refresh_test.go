package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/nextcrm/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleRefreshForConcurrentUnauthorized(t *testing.T) {
	backend := newScriptedBackend()
	backend.gate = make(chan struct{})
	g := newTestGateway(t, backend)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = g.Do(context.Background(), get(fmt.Sprintf("/api/nextcrm/contracts/%d/", i)))
		}(i)
	}

	require.Eventually(t, func() bool { return g.Coordinator().Pending() == n-1 }, 2*time.Second, time.Millisecond)
	require.True(t, g.Coordinator().InFlight())
	close(backend.gate)
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "call %d", i)
	}
	assert.Equal(t, uint64(1), g.Coordinator().Refreshes())
	assert.Equal(t, 0, g.Coordinator().Pending())
	assert.False(t, g.Coordinator().InFlight())
	assert.Len(t, backend.replays(), n)
	assert.Equal(t, uint64(n-1), g.metrics.Value(metrics.RequestQueued))
	assert.Empty(t, g.navigator.Reasons())

	v, ok := g.Cookie(AccessCookie)
	require.True(t, ok)
	assert.Equal(t, "new-access", v)
}

func TestQueuedCallsReplayInFIFOOrder(t *testing.T) {
	backend := newScriptedBackend()
	backend.gate = make(chan struct{})
	g := newTestGateway(t, backend)

	var wg sync.WaitGroup
	call := func(path string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Do(context.Background(), get(path))
			assert.NoError(t, err)
		}()
	}

	call("/origin/")
	require.Eventually(t, g.Coordinator().InFlight, 2*time.Second, time.Millisecond)
	for i, path := range []string{"/a/", "/b/", "/c/"} {
		call(path)
		want := i + 1
		require.Eventually(t, func() bool { return g.Coordinator().Pending() == want }, 2*time.Second, time.Millisecond)
	}

	close(backend.gate)
	wg.Wait()

	assert.Equal(t, []string{"/a/", "/b/", "/c/"}, g.events.Replayed())
	assert.ElementsMatch(t, []string{"/a/", "/b/", "/c/", "/origin/"}, backend.replays())
}

func TestSlowReplaysDoNotExhaustOriginatorTimeout(t *testing.T) {
	const replayLatency = 150 * time.Millisecond
	backend := newScriptedBackend()
	backend.gate = make(chan struct{})
	backend.resource = func(path string, authorized bool) *Response {
		if !authorized {
			return jsonResponse(http.StatusUnauthorized, `{"detail":"Authentication credentials were not provided."}`)
		}
		time.Sleep(replayLatency)
		return jsonResponse(http.StatusOK, `{"path":"`+path+`"}`)
	}
	g := newTestGateway(t, backend, func(c *Config) { c.RequestTimeout = 500 * time.Millisecond })

	originDone := make(chan error, 1)
	go func() {
		_, err := g.Do(context.Background(), get("/origin/"))
		originDone <- err
	}()
	require.Eventually(t, g.Coordinator().InFlight, 2*time.Second, time.Millisecond)

	const queued = 4
	var wg sync.WaitGroup
	errs := make([]error, queued)
	for i := 0; i < queued; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = g.Do(context.Background(), get(fmt.Sprintf("/q/%d/", i)))
		}(i)
		want := i + 1
		require.Eventually(t, func() bool { return g.Coordinator().Pending() == want }, 2*time.Second, time.Millisecond)
	}

	close(backend.gate)
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "queued call %d", i)
	}
	require.NoError(t, <-originDone)
	assert.Equal(t, []string{"/q/0/", "/q/1/", "/q/2/", "/q/3/"}, g.events.Replayed())
	assert.Len(t, backend.replays(), queued+1)
	assert.Empty(t, g.navigator.Reasons())
}

func TestReplayedUnauthorizedPropagates(t *testing.T) {
	backend := newScriptedBackend()
	backend.resource = func(string, bool) *Response {
		return jsonResponse(http.StatusUnauthorized, `{"detail":"Token is invalid or expired"}`)
	}
	g := newTestGateway(t, backend)

	_, err := g.Do(context.Background(), get("/api/nextcrm/contracts/"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Token is invalid or expired", ErrorMessage(err))
	assert.Equal(t, uint64(1), g.Coordinator().Refreshes())
	assert.Empty(t, g.navigator.Reasons())
}

func TestRefreshFailureRejectsQueueAndRedirectsOnce(t *testing.T) {
	backend := newScriptedBackend()
	backend.gate = make(chan struct{})
	backend.refreshFn = func() *Response {
		return jsonResponse(http.StatusUnauthorized,
			`{"error":"Invalid refresh token","code":"INVALID_REFRESH_TOKEN"}`)
	}
	g := newTestGateway(t, backend)
	seedCookie(t, g.Jar(), RefreshCookie, "stale")

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = g.Do(context.Background(), get(fmt.Sprintf("/r/%d/", i)))
		}(i)
	}
	require.Eventually(t, func() bool { return g.Coordinator().Pending() == n-1 }, 2*time.Second, time.Millisecond)
	close(backend.gate)
	wg.Wait()

	for i, err := range errs {
		require.Error(t, err, "call %d", i)
		assert.ErrorIs(t, err, ErrSessionExpired)
		assert.Equal(t, "Invalid refresh token", ErrorMessage(err))
	}
	assert.Equal(t, []Reason{ReasonRefreshRejected}, g.navigator.Reasons())
	assert.Equal(t, uint64(1), g.Redirector().Count())
	assert.Empty(t, backend.replays())

	_, ok := g.Cookie(RefreshCookie)
	assert.False(t, ok, "redirect clears session cookies")
}

func TestRefreshEndpointUnauthorizedDoesNotRefresh(t *testing.T) {
	backend := newScriptedBackend()
	backend.refreshFn = func() *Response {
		return jsonResponse(http.StatusUnauthorized, `{"error":"No refresh token","code":"NO_REFRESH_TOKEN"}`)
	}
	g := newTestGateway(t, backend)

	_, err := g.Do(context.Background(), &Request{Method: http.MethodPost, Path: DefaultRefreshPath})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, uint64(0), g.Coordinator().Refreshes())
	assert.Equal(t, []Reason{ReasonRefreshRejected}, g.navigator.Reasons())
}

func TestProbeWithoutRefreshCookieRedirects(t *testing.T) {
	backend := newScriptedBackend()
	g := newTestGateway(t, backend)

	_, err := g.Do(context.Background(), get(DefaultProbePath))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, uint64(0), g.Coordinator().Refreshes())
	assert.Equal(t, []Reason{ReasonNoRefreshCredential}, g.navigator.Reasons())
}

func TestProbeWithRefreshCookieRefreshes(t *testing.T) {
	backend := newScriptedBackend()
	g := newTestGateway(t, backend)
	seedCookie(t, g.Jar(), RefreshCookie, "opaque-refresh")

	resp, err := g.Do(context.Background(), get(DefaultProbePath))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(1), g.Coordinator().Refreshes())
	assert.Empty(t, g.navigator.Reasons())
}

func TestCancelledWaiterLeavesQueue(t *testing.T) {
	backend := newScriptedBackend()
	backend.gate = make(chan struct{})
	g := newTestGateway(t, backend)

	originDone := make(chan error, 1)
	go func() {
		_, err := g.Do(context.Background(), get("/origin/"))
		originDone <- err
	}()
	require.Eventually(t, g.Coordinator().InFlight, 2*time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	waiterDone := make(chan error, 1)
	go func() {
		_, err := g.Do(ctx, get("/waiter/"))
		waiterDone <- err
	}()
	require.Eventually(t, func() bool { return g.Coordinator().Pending() == 1 }, 2*time.Second, time.Millisecond)

	cancel()
	err := <-waiterDone
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	close(backend.gate)
	require.NoError(t, <-originDone)
	assert.Equal(t, []string{"/origin/"}, backend.replays())
	assert.Equal(t, uint64(1), g.metrics.Value(metrics.QueueAbandoned))
}

func TestRefreshOutlivesCancelledOriginator(t *testing.T) {
	backend := newScriptedBackend()
	backend.gate = make(chan struct{})
	g := newTestGateway(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	originDone := make(chan error, 1)
	go func() {
		_, err := g.Do(ctx, get("/origin/"))
		originDone <- err
	}()
	require.Eventually(t, g.Coordinator().InFlight, 2*time.Second, time.Millisecond)

	waiterDone := make(chan error, 1)
	go func() {
		_, err := g.Do(context.Background(), get("/waiter/"))
		waiterDone <- err
	}()
	require.Eventually(t, func() bool { return g.Coordinator().Pending() == 1 }, 2*time.Second, time.Millisecond)

	cancel()
	close(backend.gate)

	require.NoError(t, <-waiterDone)
	assert.Error(t, <-originDone)
	assert.Contains(t, backend.replays(), "/waiter/")
}
