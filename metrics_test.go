package nextcrm

import (
	"context"
	"testing"
	"time"
)

func TestMetricsDisabledSnapshotIsEmpty(t *testing.T) {
	c, err := New().
		WithBaseURL("https://crm.example.com").
		WithTransport(okTransport()).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer c.Close()

	if _, err := c.Profile(context.Background()); err != nil {
		t.Fatalf("profile failed: %v", err)
	}

	snap := c.MetricsSnapshot()
	if got := snap.Counters[MetricRequestTotal]; got != 0 {
		t.Fatalf("expected 0 requests recorded, got %d", got)
	}
}

func TestMetricsNilClientSnapshot(t *testing.T) {
	var c *Client
	snap := c.MetricsSnapshot()
	if snap.Counters == nil || snap.Histograms == nil {
		t.Fatalf("expected empty maps, got %+v", snap)
	}
}

func TestMetricsCountLoginAndRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.backend.ExpireAccessTokens()

	if _, err := env.client.DashboardStats(context.Background()); err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}

	snap := env.client.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected MetricLoginSuccess=1 got %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricRefreshStarted] != 1 {
		t.Fatalf("expected MetricRefreshStarted=1 got %d", snap.Counters[MetricRefreshStarted])
	}
	if snap.Counters[MetricRefreshSuccess] != 1 {
		t.Fatalf("expected MetricRefreshSuccess=1 got %d", snap.Counters[MetricRefreshSuccess])
	}
	if snap.Counters[MetricUnauthorized] != 1 {
		t.Fatalf("expected MetricUnauthorized=1 got %d", snap.Counters[MetricUnauthorized])
	}
	if snap.Counters[MetricRefreshFailure] != 0 {
		t.Fatalf("expected no refresh failures, got %d", snap.Counters[MetricRefreshFailure])
	}
}

func TestMetricsLatencyHistograms(t *testing.T) {
	env := newTestEnv(t, func(b *Builder) { b.WithLatencyHistograms(true) })
	env.login(t)

	snap := env.client.MetricsSnapshot()
	buckets := snap.Histograms[MetricRequestLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	var total uint64
	for _, v := range buckets {
		total += v
	}
	// Login and the profile probe.
	if total != 2 {
		t.Fatalf("expected 2 latency observations, got %d", total)
	}
}

func TestMetricsRedirectCounted(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.backend.ExpireAccessTokens()
	env.backend.RevokeRefreshTokens()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = env.client.ListTraders(ctx, ListParams{})

	snap := env.client.MetricsSnapshot()
	if snap.Counters[MetricLoginRedirect] != 1 {
		t.Fatalf("expected MetricLoginRedirect=1 got %d", snap.Counters[MetricLoginRedirect])
	}
	if snap.Counters[MetricRefreshFailure] != 1 {
		t.Fatalf("expected MetricRefreshFailure=1 got %d", snap.Counters[MetricRefreshFailure])
	}
	if env.backend.Refreshes() != 0 {
		t.Fatalf("expected no successful backend refresh")
	}
}
