package guildguard

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter.
type MetricID uint16

const (
	// MetricCheckAllowed counts permission checks that passed.
	MetricCheckAllowed MetricID = iota
	// MetricCheckDenied counts permission checks that failed.
	MetricCheckDenied
	// MetricRoleCreated counts successful role creations.
	MetricRoleCreated
	// MetricRoleUpdated counts successful role edits.
	MetricRoleUpdated
	// MetricRoleDeleted counts successful role deletions.
	MetricRoleDeleted
	// MetricRolesReordered counts committed batch reorders.
	MetricRolesReordered
	// MetricRoleAssigned counts role grants to members.
	MetricRoleAssigned
	// MetricRoleUnassigned counts role revocations from members.
	MetricRoleUnassigned
	// MetricOverrideSet counts override upserts.
	MetricOverrideSet
	// MetricOverrideCleared counts override deletions.
	MetricOverrideCleared
	// MetricHierarchyDenied counts mutations rejected for insufficient rank.
	MetricHierarchyDenied
	// MetricEscalationDenied counts mutations rejected by the escalation
	// guard.
	MetricEscalationDenied
	// MetricVersionConflict counts optimistic-concurrency failures.
	MetricVersionConflict
	// MetricElevationGranted counts fresh elevation grants.
	MetricElevationGranted
	// MetricElevationRefreshed counts extensions of active sessions.
	MetricElevationRefreshed
	// MetricElevationRevoked counts explicit de-elevations.
	MetricElevationRevoked
	// MetricElevationExpired counts sessions dropped by the sweeper.
	MetricElevationExpired
	// MetricElevationVerifyFailed counts rejected verification proofs.
	MetricElevationVerifyFailed
	// MetricDestructiveDenied counts destructive actions blocked for lack
	// of an active elevation session.
	MetricDestructiveDenied
	// MetricResolveLatency is the histogram slot for resolution time.
	MetricResolveLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed array of atomic counters plus one latency histogram.
// Lock-free on the hot path; Snapshot is for scraping, not coordination.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics instance honoring the config toggles.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the resolve histogram is being recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a resolution duration into the latency histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricResolveLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram bucket.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricResolveLatency].buckets[i])
		}
		s.Histograms[MetricResolveLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	us := d.Microseconds()

	switch {
	case us <= 1:
		return 0
	case us <= 5:
		return 1
	case us <= 10:
		return 2
	case us <= 50:
		return 3
	case us <= 100:
		return 4
	case us <= 500:
		return 5
	case us <= 1000:
		return 6
	default:
		return 7
	}
}
