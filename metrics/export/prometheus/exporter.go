package prometheus

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
}

type stateSource interface {
	State() goSession.State
}

// PrometheusExporter is a prometheus.Collector over a controller's counters.
// Every scrape reads a fresh snapshot.
type PrometheusExporter struct {
	source       metricsSource
	counters     []counterDesc
	histograms   []histogramDesc
	auditDropped *prometheus.Desc
	state        stateSource
	signedIn     *prometheus.Desc
	generation   *prometheus.Desc
}

type counterDesc struct {
	id   goSession.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   goSession.MetricID
	desc *prometheus.Desc
}

// NewPrometheusExporter creates an exporter that reads from c.
func NewPrometheusExporter(c *goSession.Controller) *PrometheusExporter {
	return NewPrometheusExporterFromSource(c)
}

// NewPrometheusExporterFromSource creates an exporter from any value with
// MetricsSnapshot and AuditDropped. Sources that also have State get the
// signed-in and generation gauges.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	e := &PrometheusExporter{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		auditDropped: prometheus.NewDesc(
			internaldefs.AuditDroppedName,
			"Dropped audit events due to dispatcher backpressure.",
			nil, nil,
		),
	}
	if st, ok := source.(stateSource); ok {
		e.state = st
		e.signedIn = prometheus.NewDesc(internaldefs.SignedInName, "1 while a user is signed in, else 0.", nil, nil)
		e.generation = prometheus.NewDesc(internaldefs.GenerationName, "Number of state changes applied by the controller.", nil, nil)
	}
	for _, def := range internaldefs.CounterDefs {
		e.counters = append(e.counters, counterDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	for _, def := range internaldefs.HistogramDefs {
		e.histograms = append(e.histograms, histogramDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	return e
}

// Describe implements prometheus.Collector.
func (e *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range e.counters {
		ch <- c.desc
	}
	for _, h := range e.histograms {
		ch <- h.desc
	}
	ch <- e.auditDropped
	if e.state != nil {
		ch <- e.signedIn
		ch <- e.generation
	}
}

// Collect implements prometheus.Collector. With metrics disabled and no
// dropped audit events only the state gauges are produced.
func (e *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	if e == nil || e.source == nil {
		return
	}

	if e.state != nil {
		s := e.state.State()
		in := 0.0
		if s.SignedIn {
			in = 1
		}
		ch <- prometheus.MustNewConstMetric(e.signedIn, prometheus.GaugeValue, in)
		ch <- prometheus.MustNewConstMetric(e.generation, prometheus.GaugeValue, float64(s.Generation))
	}

	snapshot := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, c := range e.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(snapshot.Counters[c.id]))
	}

	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for i, bound := range internaldefs.HistogramUpperBounds {
			buckets[bound] = cumulative[i]
		}
		// Snapshots carry no sum.
		ch <- prometheus.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(e.auditDropped, prometheus.CounterValue, float64(dropped))
}

// Registry returns a fresh registry holding only this exporter.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(e)
	return reg
}

// Handler serves the exporter's metrics in the Prometheus exposition format.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.Registry(), promhttp.HandlerOpts{})
}
