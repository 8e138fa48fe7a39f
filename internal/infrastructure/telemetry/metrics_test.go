package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/erp/obligations/internal/infrastructure/config"
	"github.com/erp/obligations/internal/infrastructure/telemetry"
)

// setupManualMeter returns an enabled provider backed by a manual reader.
func setupManualMeter(t *testing.T) (*telemetry.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	original := otel.GetMeterProvider()
	reader := sdkmetric.NewManualReader()
	mp, err := telemetry.NewMeterProviderWithReader(telemetry.MetricsConfig{
		Enabled:     true,
		ServiceName: "obligations-test",
	}, reader, zaptest.NewLogger(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

// collect gathers every metric currently held by the reader, keyed by name.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

// sumWhere adds up the int64 sum points whose attributes contain every kv.
func sumWhere(t *testing.T, m metricdata.Metrics, kvs ...attribute.KeyValue) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		matches := true
		for _, kv := range kvs {
			v, found := dp.Attributes.Value(kv.Key)
			if !found || v.Emit() != kv.Value.Emit() {
				matches = false
				break
			}
		}
		if matches {
			total += dp.Value
		}
	}
	return total
}

func TestMetricsConfigFrom(t *testing.T) {
	cfg := telemetry.MetricsConfigFrom(config.TelemetryConfig{
		Enabled:           true,
		CollectorEndpoint: "collector:4317",
		ServiceName:       "obligations",
		MetricsInterval:   15 * time.Second,
		Insecure:          true,
	})

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector:4317", cfg.CollectorEndpoint)
	assert.Equal(t, 15*time.Second, cfg.ExportInterval)
	assert.True(t, cfg.Insecure)
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    60 * time.Second,
		ServiceName:       "test-service",
	}

	mp, err := telemetry.NewMeterProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.Equal(t, cfg, mp.GetConfig())
	assert.NotNil(t, mp.Meter("test-meter"))
	assert.NoError(t, mp.ForceFlush(ctx))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.NoError(t, mp.Shutdown(cancelled))
}

func TestMetricHelpers(t *testing.T) {
	mp, reader := setupManualMeter(t)
	assert.True(t, mp.IsEnabled())
	ctx := context.Background()
	meter := mp.Meter("helpers")

	counter, err := telemetry.NewCounter(meter, "test_counter_total", "test counter", "{items}")
	require.NoError(t, err)
	counter.Inc(ctx, telemetry.AttrStatus.String("ok"))
	counter.Add(ctx, 4, telemetry.AttrStatus.String("ok"))
	counter.Inc(ctx, telemetry.AttrStatus.String("failed"))

	histogram, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:       "test_duration_seconds",
		Unit:       "s",
		Boundaries: telemetry.SmallDurationBuckets,
	})
	require.NoError(t, err)
	histogram.RecordDuration(ctx, 2*time.Millisecond)
	histogram.Record(ctx, 0.5)

	gauge, err := telemetry.NewGauge(meter, "test_gauge", "test gauge", "{items}")
	require.NoError(t, err)
	gauge.Record(ctx, 9)
	gauge.Record(ctx, 7)

	metrics := collect(t, reader)

	assert.Equal(t, int64(5), sumWhere(t, metrics["test_counter_total"], telemetry.AttrStatus.String("ok")))
	assert.Equal(t, int64(1), sumWhere(t, metrics["test_counter_total"], telemetry.AttrStatus.String("failed")))

	hist, ok := metrics["test_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.Equal(t, telemetry.SmallDurationBuckets, hist.DataPoints[0].Bounds)

	g, ok := metrics["test_gauge"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, g.DataPoints, 1)
	assert.Equal(t, int64(7), g.DataPoints[0].Value)
}
