package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/fogcast/fogcast/internal/api/middleware"

// ProvenanceHeader carries the provenance of weather responses. Metrics and
// access logs pick it up from the response headers.
const ProvenanceHeader = "X-Data-Provenance"

// Metrics records HTTP server metrics plus the provenance mix of weather
// responses.
type Metrics struct {
	duration   metric.Float64Histogram
	requests   metric.Int64Counter
	inFlight   metric.Int64UpDownCounter
	provenance metric.Int64Counter
}

// NewMetrics creates the instruments on meter, or on the global meter
// provider when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	var m Metrics
	var errs [4]error
	m.duration, errs[0] = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"),
	)
	m.requests, errs[1] = meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("HTTP server requests by route and status"),
		metric.WithUnit("{request}"),
	)
	m.inFlight, errs[2] = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("HTTP requests being served"),
		metric.WithUnit("{request}"),
	)
	m.provenance, errs[3] = meter.Int64Counter(
		"weather.responses",
		metric.WithDescription("Weather responses by data provenance"),
		metric.WithUnit("{response}"),
	)
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &m, nil
}

// Middleware returns an HTTP middleware that records metrics for each request.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			method := metric.WithAttributes(attribute.String("http.request.method", r.Method))
			m.inFlight.Add(ctx, 1, method)
			defer m.inFlight.Add(ctx, -1, method)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			route := routePattern(r, "unmatched")
			attrs := metric.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.response.status_code", strconv.Itoa(rec.statusCode)),
			)
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.requests.Add(ctx, 1, attrs)

			if p := rec.Header().Get(ProvenanceHeader); p != "" {
				m.provenance.Add(ctx, 1, metric.WithAttributes(
					attribute.String("http.route", route),
					attribute.String("provenance", p),
				))
			}
		})
	}
}

// routePattern returns the matched chi route, or fallback outside a chi
// router. Path parameters stay templated to bound metric cardinality.
func routePattern(r *http.Request, fallback string) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return fallback
}
