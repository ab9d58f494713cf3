package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one controller counter for exporters.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one controller histogram for exporters.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

const (
	// AuditDroppedName is the counter for audit events lost to backpressure.
	AuditDroppedName = "gosession_audit_dropped_total"
	// SignedInName is the 0/1 gauge for the published signed-in flag.
	SignedInName = "gosession_signed_in"
	// GenerationName is the gauge for the published state generation.
	GenerationName = "gosession_state_generation"
)

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricSignInSuccess, Name: "gosession_sign_in_success_total", Help: "Sign-ins accepted by the provider."},
	{ID: goSession.MetricSignInFailure, Name: "gosession_sign_in_failure_total", Help: "Sign-ins rejected or failed by the provider."},
	{ID: goSession.MetricSignUpSuccess, Name: "gosession_sign_up_success_total", Help: "Accounts created."},
	{ID: goSession.MetricSignUpFailure, Name: "gosession_sign_up_failure_total", Help: "Sign-ups rejected or failed by the provider."},
	{ID: goSession.MetricSignOut, Name: "gosession_sign_out_total", Help: "Applied sign-outs."},
	{ID: goSession.MetricSignOutProviderFailure, Name: "gosession_sign_out_provider_failure_total", Help: "Sign-outs whose provider call failed."},
	{ID: goSession.MetricRefreshSignedIn, Name: "gosession_refresh_signed_in_total", Help: "Refreshes that found a provider user."},
	{ID: goSession.MetricRefreshSignedOut, Name: "gosession_refresh_signed_out_total", Help: "Refreshes that found no provider user."},
	{ID: goSession.MetricValidationRejected, Name: "gosession_validation_rejected_total", Help: "Operations rejected before reaching the provider."},
	{ID: goSession.MetricStaleResultDiscarded, Name: "gosession_stale_result_discarded_total", Help: "Provider results discarded after close."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricProviderLatency, Name: "gosession_provider_latency_seconds", Help: "Provider call latency histogram."},
}

// HistogramBounds are the bucket labels, ending with +Inf.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramUpperBounds are the finite bucket bounds in seconds.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
