package otel

import (
	"context"
	"maps"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goIdentity.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goIdentity.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return goIdentity.MetricsSnapshot{
		Counters:   maps.Clone(f.snapshot.Counters),
		Histograms: maps.Clone(f.snapshot.Histograms),
	}
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func sumValue(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				return data.DataPoints[0].Value, true
			case metricdata.Gauge[int64]:
				return data.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

func TestExporterCollects(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters: map[goIdentity.MetricID]uint64{
				goIdentity.MetricLoginSuccess: 3,
			},
			Histograms: map[goIdentity.MetricID][]uint64{
				goIdentity.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(provider.Meter("goidentity-test"), src)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	if v, ok := sumValue(rm, "goidentity_login_success_total"); !ok || v != 3 {
		t.Fatalf("login success: %d %v", v, ok)
	}
	if v, ok := sumValue(rm, "goidentity_validate_latency_seconds_bucket_le_inf"); !ok || v != 8 {
		t.Fatalf("+Inf bucket: %d %v", v, ok)
	}
	if v, ok := sumValue(rm, "goidentity_validate_latency_seconds_bucket_le_0_005"); !ok || v != 1 {
		t.Fatalf("first bucket: %d %v", v, ok)
	}
	if v, ok := sumValue(rm, "goidentity_audit_dropped_total"); !ok || v != 1 {
		t.Fatalf("audit dropped: %d %v", v, ok)
	}
}

func TestExporterRejectsNil(t *testing.T) {
	_, provider := newReader()

	if _, err := NewExporterFromSource(provider.Meter("goidentity-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters: map[goIdentity.MetricID]uint64{
				goIdentity.MetricLoginSuccess: 1,
			},
			Histograms: map[goIdentity.MetricID][]uint64{},
		},
	}

	exp, err := NewExporterFromSource(provider.Meter("goidentity-test"), src)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goIdentity.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
