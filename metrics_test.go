package goSession

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricSignInSuccess)

	if got := m.Value(MetricSignInSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricSignInSuccess)
	m.Inc(MetricSignInSuccess)
	m.Inc(MetricSignInSuccess)

	if got := m.Value(MetricSignInSuccess); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricSignOut)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricSignOut); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

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
		m.Observe(MetricProviderLatency, d)
	}

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricProviderLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if got := snap.Counters[MetricProviderLatency]; got != uint64(len(observations)) {
		t.Fatalf("expected observation count %d, got %d", len(observations), got)
	}
}

func TestMetricsObserveIgnoresCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricSignInSuccess, time.Millisecond)

	if got := m.Value(MetricSignInSuccess); got != 0 {
		t.Fatalf("Observe must not touch plain counters, got %d", got)
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricSignInSuccess)
	m.Inc(MetricSignInFailure)
	m.Inc(MetricSignInFailure)
	m.Observe(MetricProviderLatency, 2*time.Millisecond)

	snap := m.Snapshot()

	if snap.Counters[MetricSignInSuccess] != 1 {
		t.Fatalf("expected MetricSignInSuccess=1 got %d", snap.Counters[MetricSignInSuccess])
	}
	if snap.Counters[MetricSignInFailure] != 2 {
		t.Fatalf("expected MetricSignInFailure=2 got %d", snap.Counters[MetricSignInFailure])
	}
	if snap.Histograms[MetricProviderLatency][0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", snap.Histograms[MetricProviderLatency][0])
	}
}

func TestMetricIDNames(t *testing.T) {
	seen := map[string]bool{}
	for id := MetricID(0); id < metricIDCount; id++ {
		name := id.String()
		if name == "" || name == "unknown" || seen[name] {
			t.Fatalf("metric %d has bad or duplicate name %q", id, name)
		}
		seen[name] = true
	}
}
