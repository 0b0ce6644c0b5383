// Package prometheus exposes goIdentity engine metrics as a
// prometheus.Collector.
//
// Counters are named goidentity_*_total. The validate and permission
// resolution latencies are histograms in seconds with the engine's fixed
// bucket bounds. Nothing is registered globally; mount [Exporter.Handler] or
// register the exporter with an existing registry.
package prometheus
