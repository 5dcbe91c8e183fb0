package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fogcast/fogcast/internal/telemetry"
	"github.com/fogcast/fogcast/internal/weather"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "fogcast-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestProvider_Shutdown_NilProviders(t *testing.T) {
	provider := &telemetry.Provider{}
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, telemetry.Sampler(telemetry.Config{}).Description(), "AlwaysOnSampler")
	assert.Contains(t, telemetry.Sampler(telemetry.Config{SampleRatio: 2}).Description(), "AlwaysOnSampler")
	assert.Contains(t, telemetry.Sampler(telemetry.Config{SampleRatio: 0.25}).Description(), "TraceIDRatioBased{0.25}")
}

func TestResource(t *testing.T) {
	cfg := telemetry.Config{ServiceName: "fogcast-worker", ServiceVersion: "1.4.0", Environment: "staging"}

	first, err := telemetry.Resource(context.Background(), cfg)
	require.NoError(t, err)
	second, err := telemetry.Resource(context.Background(), cfg)
	require.NoError(t, err)

	attrs := first.Set()
	name, _ := attrs.Value("service.name")
	version, _ := attrs.Value("service.version")
	env, _ := attrs.Value("deployment.environment")
	assert.Equal(t, "fogcast-worker", name.AsString())
	assert.Equal(t, "1.4.0", version.AsString())
	assert.Equal(t, "staging", env.AsString())

	id1, ok := attrs.Value("service.instance.id")
	require.True(t, ok)
	id2, _ := second.Set().Value("service.instance.id")
	assert.NotEqual(t, id1.AsString(), id2.AsString())
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}

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

func TestProviderMetrics(t *testing.T) {
	reader, mp := newReader(t)

	metrics, err := telemetry.NewProviderMetrics(mp.Meter(telemetry.MeterName))
	require.NoError(t, err)

	var _ weather.MetricsRecorder = metrics

	metrics.RecordRequest("open-meteo", "forecast", 120*time.Millisecond, nil)
	metrics.RecordRequest("open-meteo", "forecast", 80*time.Millisecond, errors.New("boom"))
	metrics.RecordCacheHit("open-meteo", "forecast")
	metrics.RecordCacheHit("open-meteo", "forecast")
	metrics.RecordCacheMiss("open-meteo", "forecast")

	got := collect(t, reader)

	total, ok := got["provider.request.total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var requests int64
	var failed int64
	for _, dp := range total.DataPoints {
		requests += dp.Value
		if v, ok := dp.Attributes.Value(attribute.Key("error")); ok && v.AsBool() {
			failed += dp.Value
		}
	}
	assert.Equal(t, int64(2), requests)
	assert.Equal(t, int64(1), failed)

	lookups, ok := got["provider.cache.lookup"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	results := make(map[string]int64)
	for _, dp := range lookups.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("cache.result"))
		results[v.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"hit": 2, "miss": 1}, results)

	_, ok = got["provider.request.duration"].Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
}

func TestRegisterCacheGauge(t *testing.T) {
	reader, mp := newReader(t)

	entries, fresh := 3, 1
	reg, err := telemetry.RegisterCacheGauge(mp.Meter(telemetry.MeterName), func() (int, int) {
		return entries, fresh
	})
	require.NoError(t, err)
	defer func() { _ = reg.Unregister() }()

	gauge, ok := collect(t, reader)["cache.entries"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)

	values := make(map[string]int64)
	for _, dp := range gauge.DataPoints {
		state, _ := dp.Attributes.Value(attribute.Key("cache.state"))
		values[state.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"all": 3, "fresh": 1}, values)
}
