// Package otel bridges controller metrics to OpenTelemetry.
//
// [NewOTelExporter] registers one Int64ObservableCounter per controller
// counter. The provider latency histogram is reported as a cumulative
// bucket gauge with an "le" attribute plus a count gauge. Sources that
// publish session state also get signed-in and generation gauges. A single
// callback reads the snapshot on each collection. The caller owns the
// MeterProvider.
package otel
