package otel

import (
	"context"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
}

// stateSource is implemented by *goSession.Controller. Sources that also
// publish state get the session gauges.
type stateSource interface {
	State() goSession.State
}

type counterInstrument struct {
	id  goSession.MetricID
	ins metric.Int64ObservableCounter
}

// latencyInstrument reports one histogram as a cumulative bucket gauge keyed
// by the "le" attribute, plus a sample count.
type latencyInstrument struct {
	id      goSession.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	bounds  []attribute.Set
}

// OTelExporter bridges controller counters to OpenTelemetry observable
// instruments. Close unregisters the callback.
type OTelExporter struct {
	source       metricsSource
	state        stateSource
	registration metric.Registration
	counters     []counterInstrument
	latency      []latencyInstrument
	auditDropped metric.Int64ObservableCounter
	signedIn     metric.Int64ObservableGauge
	generation   metric.Int64ObservableGauge
}

// NewOTelExporter registers observable instruments for c on meter.
func NewOTelExporter(meter metric.Meter, c *goSession.Controller) (*OTelExporter, error) {
	if c == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, c)
}

// NewOTelExporterFromSource is NewOTelExporter for any metrics source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, ins: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		li, err := newLatencyInstrument(meter, def)
		if err != nil {
			return nil, err
		}
		e.latency = append(e.latency, li)
		observables = append(observables, li.buckets, li.count)
	}

	var err error
	e.auditDropped, err = meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription("Audit events dropped because the dispatcher buffer was full."),
	)
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	observables = append(observables, e.auditDropped)

	if st, ok := source.(stateSource); ok {
		e.state = st
		e.signedIn, err = meter.Int64ObservableGauge(internaldefs.SignedInName,
			metric.WithDescription("1 while a user is signed in, else 0."))
		if err != nil {
			return nil, fmt.Errorf("gauge %s: %w", internaldefs.SignedInName, err)
		}
		e.generation, err = meter.Int64ObservableGauge(internaldefs.GenerationName,
			metric.WithDescription("Number of state changes applied by the controller."))
		if err != nil {
			return nil, fmt.Errorf("gauge %s: %w", internaldefs.GenerationName, err)
		}
		observables = append(observables, e.signedIn, e.generation)
	}

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func newLatencyInstrument(meter metric.Meter, def internaldefs.HistogramDef) (latencyInstrument, error) {
	li := latencyInstrument{id: def.ID}

	var err error
	li.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket",
		metric.WithDescription(def.Help+" Cumulative count per upper bound."))
	if err != nil {
		return li, fmt.Errorf("gauge %s_bucket: %w", def.Name, err)
	}
	li.count, err = meter.Int64ObservableGauge(def.Name+"_count",
		metric.WithDescription(def.Help+" Total samples."))
	if err != nil {
		return li, fmt.Errorf("gauge %s_count: %w", def.Name, err)
	}

	li.bounds = make([]attribute.Set, len(internaldefs.HistogramBounds))
	for i, le := range internaldefs.HistogramBounds {
		li.bounds[i] = attribute.NewSet(attribute.String("le", le))
	}
	return li, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snap.Counters[c.id]))
	}

	for _, li := range e.latency {
		cum := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[li.id]))
		for i, set := range li.bounds {
			o.ObserveInt64(li.buckets, int64(cum[i]), metric.WithAttributeSet(set))
		}
		o.ObserveInt64(li.count, int64(cum[len(cum)-1]))
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	if e.state != nil {
		s := e.state.State()
		var in int64
		if s.SignedIn {
			in = 1
		}
		o.ObserveInt64(e.signedIn, in)
		o.ObserveInt64(e.generation, int64(s.Generation))
	}
	return nil
}

// Close unregisters the collection callback. It is safe on a nil exporter.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
