package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/metrics/export/internaldefs"
)

// MetricsSource is the read side of *goIdentity.Engine used by the
// exporter.
type MetricsSource interface {
	MetricsSnapshot() goIdentity.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter is a prometheus.Collector over an engine's counters. Every
// scrape takes one snapshot.
type Exporter struct {
	source     MetricsSource
	counters   []counterDesc
	histograms []histogramDesc
	dropped    *prometheus.Desc
	bounds     []float64
}

type counterDesc struct {
	id   goIdentity.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   goIdentity.MetricID
	desc *prometheus.Desc
}

var _ prometheus.Collector = (*Exporter)(nil)

// NewExporter returns a collector reading from engine.
func NewExporter(engine *goIdentity.Engine) *Exporter {
	return NewExporterFromSource(engine)
}

func NewExporterFromSource(source MetricsSource) *Exporter {
	e := &Exporter{
		source: source,
		bounds: internaldefs.UpperBounds(),
		dropped: prometheus.NewDesc(
			internaldefs.AuditDroppedName,
			internaldefs.AuditDroppedHelp,
			nil, nil,
		),
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

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range e.counters {
		ch <- c.desc
	}
	for _, h := range e.histograms {
		ch <- h.desc
	}
	ch <- e.dropped
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e.source == nil {
		return
	}
	snapshot := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		v, ok := snapshot.Counters[c.id]
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(v))
	}

	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(e.bounds))
		for i, bound := range e.bounds {
			buckets[bound] = cumulative[i]
		}
		// the engine keeps bucket counts only, so the sum is not available
		ch <- prometheus.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(e.dropped, prometheus.CounterValue, float64(e.source.AuditDropped()))
}

// Handler serves the exporter from a private registry. Callers that already
// run a registry should Register the Exporter there instead.
func (e *Exporter) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(e)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
