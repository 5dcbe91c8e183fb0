package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName scopes the instruments created in this package.
const MeterName = "github.com/fogcast/fogcast/internal/telemetry"

// ProviderMetrics records vendor calls and forecast cache lookups.
type ProviderMetrics struct {
	latency metric.Float64Histogram
	calls   metric.Int64Counter
	lookups metric.Int64Counter
}

// NewProviderMetrics creates the provider instruments on meter. A nil meter
// uses the global meter provider.
func NewProviderMetrics(meter metric.Meter) (*ProviderMetrics, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}

	var m ProviderMetrics
	var errLatency, errCalls, errLookups error
	m.latency, errLatency = meter.Float64Histogram("provider.request.duration",
		metric.WithDescription("Vendor request latency, retries included"),
		metric.WithUnit("s"))
	m.calls, errCalls = meter.Int64Counter("provider.request.total",
		metric.WithDescription("Vendor requests by outcome"),
		metric.WithUnit("{request}"))
	m.lookups, errLookups = meter.Int64Counter("provider.cache.lookup",
		metric.WithDescription("Forecast cache lookups by result"),
		metric.WithUnit("{lookup}"))

	if err := errors.Join(errLatency, errCalls, errLookups); err != nil {
		return nil, err
	}
	return &m, nil
}

func callAttrs(provider, operation string, extra ...attribute.KeyValue) metric.MeasurementOption {
	attrs := append([]attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}, extra...)
	return metric.WithAttributes(attrs...)
}

// RecordRequest records one provider call. It does not take the request
// context, which is often cancelled by the time the call is reported.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	opt := callAttrs(provider, operation, attribute.Bool("error", err != nil))
	m.latency.Record(context.Background(), duration.Seconds(), opt)
	m.calls.Add(context.Background(), 1, opt)
}

// RecordCacheHit counts a fresh cache entry served instead of a vendor call.
func (m *ProviderMetrics) RecordCacheHit(provider, operation string) {
	m.lookups.Add(context.Background(), 1, callAttrs(provider, operation, attribute.String("cache.result", "hit")))
}

// RecordCacheMiss counts a lookup that found no fresh entry.
func (m *ProviderMetrics) RecordCacheMiss(provider, operation string) {
	m.lookups.Add(context.Background(), 1, callAttrs(provider, operation, attribute.String("cache.result", "miss")))
}

// CacheSizeFunc reports the total and fresh entry counts of the forecast cache.
type CacheSizeFunc func() (entries, fresh int)

// RegisterCacheGauge exports the cache size as an observable gauge, read at
// every collection.
func RegisterCacheGauge(meter metric.Meter, size CacheSizeFunc) (metric.Registration, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}

	gauge, err := meter.Int64ObservableGauge(
		"cache.entries",
		metric.WithDescription("Number of forecast cache entries"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		entries, fresh := size()
		o.ObserveInt64(gauge, int64(entries), metric.WithAttributes(attribute.String("cache.state", "all")))
		o.ObserveInt64(gauge, int64(fresh), metric.WithAttributes(attribute.String("cache.state", "fresh")))
		return nil
	}, gauge)
}
