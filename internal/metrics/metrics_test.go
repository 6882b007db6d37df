package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledNoIncrement(t *testing.T) {
	m := New(Config{Enabled: false})
	m.Inc(LoginSuccess)

	if got := m.Value(LoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(RefreshStarted)
	m.Observe(RequestLatency, time.Millisecond)

	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must report disabled")
	}
	if got := m.Value(RefreshStarted); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestConcurrentIncrementSafe(t *testing.T) {
	m := New(Config{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(RequestQueued)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(RequestQueued); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestHistogramBucketCorrectness(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatencyHistograms: true})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}
	for _, d := range observations {
		m.Observe(RequestLatency, d)
	}

	buckets := m.Snapshot().Histograms[RequestLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestObserveIgnoresCounterIDs(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(LoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[LoginSuccess]; ok {
		t.Fatal("counter id must not produce a histogram")
	}
	if snap.Counters[LoginSuccess] != 0 {
		t.Fatalf("observe must not touch counters, got %d", snap.Counters[LoginSuccess])
	}
}

func TestSnapshotExcludesHistogramIDsFromCounters(t *testing.T) {
	m := New(Config{Enabled: true})
	m.Inc(RefreshSuccess)
	m.Inc(RefreshFailure)
	m.Inc(RefreshFailure)

	snap := m.Snapshot()
	if snap.Counters[RefreshSuccess] != 1 || snap.Counters[RefreshFailure] != 2 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}
	if _, ok := snap.Counters[RequestLatency]; ok {
		t.Fatal("histogram id must not appear in counters")
	}
	if len(snap.Histograms) != 0 {
		t.Fatal("histograms must be absent when latency is disabled")
	}
}

func BenchmarkInc(b *testing.B) {
	m := New(Config{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(RequestTotal)
	}
}

func BenchmarkIncParallel(b *testing.B) {
	m := New(Config{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(RequestTotal)
		}
	})
}
