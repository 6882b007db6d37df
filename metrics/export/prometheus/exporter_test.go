package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	nextcrm "github.com/MrEthical07/nextcrm"
)

type fakeSource struct {
	snapshot nextcrm.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() nextcrm.MetricsSnapshot { return f.snapshot }
func (f fakeSource) EventsDropped() uint64                    { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: nextcrm.MetricsSnapshot{
			Counters:   map[nextcrm.MetricID]uint64{},
			Histograms: map[nextcrm.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: nextcrm.MetricsSnapshot{
			Counters: map[nextcrm.MetricID]uint64{
				nextcrm.MetricRefreshSuccess: 7,
			},
			Histograms: map[nextcrm.MetricID][]uint64{
				nextcrm.MetricRefreshLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"nextcrm_refresh_success_total 7",
		"nextcrm_request_total 0",
		"nextcrm_refresh_latency_seconds_bucket{le=\"0.005\"} 1",
		"nextcrm_refresh_latency_seconds_bucket{le=\"+Inf\"} 36",
		"nextcrm_refresh_latency_seconds_count 36",
		"nextcrm_events_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderNilExporter(t *testing.T) {
	var exp *Exporter
	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: nextcrm.MetricsSnapshot{
			Counters:   map[nextcrm.MetricID]uint64{nextcrm.MetricLoginSuccess: 1},
			Histograms: map[nextcrm.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: nextcrm.MetricsSnapshot{
			Counters: map[nextcrm.MetricID]uint64{
				nextcrm.MetricRequestTotal:   10000,
				nextcrm.MetricUnauthorized:   40,
				nextcrm.MetricRefreshStarted: 12,
				nextcrm.MetricRefreshSuccess: 10,
				nextcrm.MetricRefreshFailure: 2,
				nextcrm.MetricRequestQueued:  28,
				nextcrm.MetricLoginRedirect:  2,
			},
			Histograms: map[nextcrm.MetricID][]uint64{
				nextcrm.MetricRequestLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}

type gaugeSource struct {
	fakeSource
	gauges nextcrm.SessionGauges
}

func (g gaugeSource) SessionGauges() nextcrm.SessionGauges { return g.gauges }

func TestRenderIncludesSessionGauges(t *testing.T) {
	exp := NewExporterFromSource(gaugeSource{
		fakeSource: fakeSource{snapshot: nextcrm.MetricsSnapshot{
			Counters: map[nextcrm.MetricID]uint64{nextcrm.MetricRequestTotal: 1},
		}},
		gauges: nextcrm.SessionGauges{Authenticated: true, QueueDepth: 2},
	})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE nextcrm_session_authenticated gauge",
		"nextcrm_session_authenticated 1",
		"nextcrm_session_trusted 0",
		"nextcrm_refresh_queue_depth 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}
