package metrics

import (
	"sync/atomic"
	"time"
)

// ID identifies a counter or histogram slot.
type ID uint16

const (
	RequestTotal ID = iota
	RequestFailure
	TransportError
	Unauthorized
	RefreshStarted
	RefreshSuccess
	RefreshFailure
	RequestQueued
	RequestReplayed
	QueueAbandoned
	CircuitBreakerOpen
	LoginRedirect
	LoginSuccess
	LoginFailure
	RegisterSuccess
	RegisterFailure
	Logout
	LogoutBackendFailure
	SessionCheckSuccess
	SessionCheckFailure
	ProfileUpdateSuccess
	ProfileUpdateFailure
	RequestLatency
	RefreshLatency
	idCount
)

// Count is the number of defined metric slots.
const Count = int(idCount)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type histogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config toggles collection.
type Config struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Metrics holds all counters and histograms for one client.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [idCount]paddedCounter
	histograms    [idCount]histogram
}

// Snapshot is a point-in-time copy of every counter and enabled histogram.
type Snapshot struct {
	Counters   map[ID]uint64
	Histograms map[ID][]uint64
}

// New returns a Metrics configured from cfg.
func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter for id. It is a no-op on a nil or disabled receiver.
func (m *Metrics) Inc(id ID) {
	if m == nil || !m.enabled || id >= idCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the histogram for id. Only latency IDs accept observations.
func (m *Metrics) Observe(id ID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= idCount {
		return
	}
	if !IsHistogram(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id ID) uint64 {
	if m == nil || id >= idCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies the current values. A disabled receiver yields empty maps.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[ID]uint64{},
			Histograms: map[ID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[ID]uint64, int(idCount)),
		Histograms: make(map[ID][]uint64, 2),
	}

	for id := ID(0); id < idCount; id++ {
		if IsHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []ID{RequestLatency, RefreshLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

// IsHistogram reports whether id names a latency histogram.
func IsHistogram(id ID) bool {
	return id == RequestLatency || id == RefreshLatency
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
