// Package prometheus exposes controller metrics as a prometheus.Collector.
//
// [NewPrometheusExporter] wraps a [goSession.Controller]. Register the exporter
// on your own registry, or mount [PrometheusExporter.Handler] which serves a
// private one. Counter names are gosession_*_total and the provider latency
// histogram is gosession_provider_latency_seconds.
package prometheus
