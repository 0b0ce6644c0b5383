// Package otel binds goIdentity engine metrics to an OpenTelemetry meter.
//
// Each engine counter becomes an Int64ObservableCounter. Latency histograms
// are published as one Int64ObservableGauge per cumulative bucket plus a
// count gauge. The caller owns the MeterProvider.
package otel
