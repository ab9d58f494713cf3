package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one controller counter.
type MetricID uint16

const (
	// MetricSignInSuccess counts sign-ins the provider accepted.
	MetricSignInSuccess MetricID = iota
	// MetricSignInFailure counts sign-ins the provider rejected or failed.
	MetricSignInFailure
	// MetricSignUpSuccess counts accounts created.
	MetricSignUpSuccess
	// MetricSignUpFailure counts sign-ups the provider rejected or failed.
	MetricSignUpFailure
	// MetricSignOut counts applied sign-outs.
	MetricSignOut
	// MetricSignOutProviderFailure counts sign-outs whose provider call failed.
	MetricSignOutProviderFailure
	// MetricRefreshSignedIn counts refreshes that found a provider user.
	MetricRefreshSignedIn
	// MetricRefreshSignedOut counts refreshes that found none.
	MetricRefreshSignedOut
	// MetricValidationRejected counts operations rejected before the provider.
	MetricValidationRejected
	// MetricStaleResultDiscarded counts provider results dropped after Close.
	MetricStaleResultDiscarded
	// MetricProviderLatency is the provider call latency histogram.
	MetricProviderLatency
	metricIDCount
)

var metricNames = [...]string{
	MetricSignInSuccess:          "sign_in_success",
	MetricSignInFailure:          "sign_in_failure",
	MetricSignUpSuccess:          "sign_up_success",
	MetricSignUpFailure:          "sign_up_failure",
	MetricSignOut:                "sign_out",
	MetricSignOutProviderFailure: "sign_out_provider_failure",
	MetricRefreshSignedIn:        "refresh_signed_in",
	MetricRefreshSignedOut:       "refresh_signed_out",
	MetricValidationRejected:     "validation_rejected",
	MetricStaleResultDiscarded:   "stale_result_discarded",
	MetricProviderLatency:        "provider_latency",
}

func (id MetricID) String() string {
	if id < metricIDCount {
		return metricNames[id]
	}
	return "unknown"
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBucketBounds are the upper bounds of the latency buckets. The
// last bucket is unbounded.
var HistogramBucketBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and the provider latency histogram.
// A nil or disabled *Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is collected.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricProviderLatency
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricProviderLatency {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. A disabled Metrics returns empty maps.
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
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricProviderLatency].buckets[i])
		}
		s.Histograms[MetricProviderLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBucketBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
