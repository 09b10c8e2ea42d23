package guildguard

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIncAndValue(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricCheckAllowed)
	m.Inc(MetricCheckAllowed)
	m.Inc(MetricCheckDenied)

	if got := m.Value(MetricCheckAllowed); got != 2 {
		t.Fatalf("MetricCheckAllowed = %d, want 2", got)
	}
	if got := m.Value(MetricCheckDenied); got != 1 {
		t.Fatalf("MetricCheckDenied = %d, want 1", got)
	}
	if got := m.Value(MetricRoleCreated); got != 0 {
		t.Fatalf("untouched counter = %d, want 0", got)
	}
}

func TestMetricsDisabledIsInert(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricCheckAllowed)
	m.Observe(MetricResolveLatency, time.Millisecond)

	if got := m.Value(MetricCheckAllowed); got != 0 {
		t.Fatalf("disabled metrics recorded %d", got)
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot not empty: %+v", snap)
	}

	// Nil receiver is safe too.
	var nilM *Metrics
	nilM.Inc(MetricCheckAllowed)
	if nilM.Value(MetricCheckAllowed) != 0 {
		t.Fatal("nil metrics returned non-zero")
	}
}

func TestMetricsOutOfRangeID(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(metricIDCount + 10)
	if got := m.Value(metricIDCount + 10); got != 0 {
		t.Fatalf("out-of-range counter = %d", got)
	}
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricResolveLatency, 500*time.Nanosecond) // bucket 0
	m.Observe(MetricResolveLatency, 3*time.Microsecond)  // bucket 1
	m.Observe(MetricResolveLatency, 2*time.Millisecond)  // bucket 7
	// Non-histogram IDs are ignored.
	m.Observe(MetricCheckAllowed, time.Second)

	buckets := m.Snapshot().Histograms[MetricResolveLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("snapshot has %d buckets, want %d", len(buckets), histBucketCount)
	}
	want := []int{0, 1, 7}
	for _, b := range want {
		if buckets[b] != 1 {
			t.Fatalf("bucket %d = %d, want 1 (all: %v)", b, buckets[b], buckets)
		}
	}
	var total uint64
	for _, v := range buckets {
		total += v
	}
	if total != 3 {
		t.Fatalf("histogram holds %d observations, want 3", total)
	}
}

func TestBucketIndexBoundaries(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{time.Microsecond, 0},
		{5 * time.Microsecond, 1},
		{10 * time.Microsecond, 2},
		{50 * time.Microsecond, 3},
		{100 * time.Microsecond, 4},
		{500 * time.Microsecond, 5},
		{time.Millisecond, 6},
		{time.Second, 7},
	}
	for _, tc := range cases {
		if got := bucketIndex(tc.d); got != tc.want {
			t.Fatalf("bucketIndex(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricCheckAllowed)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricCheckAllowed); got != workers*perWorker {
		t.Fatalf("concurrent count = %d, want %d", got, workers*perWorker)
	}
}
