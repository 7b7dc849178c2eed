package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/logging"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/specd/internal/http"

// Operation names the session API call a route serves. Session ids never
// appear in metric attributes.
var routeOperations = map[string]string{
	"GET /health":                        "health",
	"GET /metrics":                       "metrics",
	"POST /api/v1/sessions":              "create_session",
	"GET /api/v1/sessions/:id":           "get_session",
	"DELETE /api/v1/sessions/:id":        "delete_session",
	"POST /api/v1/sessions/:id/messages": "send_message",
	"GET /api/v1/sessions/:id/spec":      "download_spec",
}

// RequestMetrics records OpenTelemetry instruments for the session API.
type RequestMetrics struct {
	meter    metric.Meter
	logger   *logging.Logger
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewRequestMetrics creates the instruments on the global meter provider.
func NewRequestMetrics(logger *logging.Logger) *RequestMetrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	return newRequestMetrics(otel.Meter(httpInstrumentationName), logger)
}

func newRequestMetrics(meter metric.Meter, logger *logging.Logger) *RequestMetrics {
	m := &RequestMetrics{meter: meter, logger: logger}
	m.init()
	return m
}

func (m *RequestMetrics) init() {
	var err error

	m.requests, err = m.meter.Int64Counter(
		"specd.http.requests_total",
		metric.WithDescription("Session API requests by operation and status class."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn(context.Background(), "failed to create requests counter", zap.Error(err))
	}

	// send_message spans model calls and handoffs, so the upper buckets
	// cover a full spec write.
	m.duration, err = m.meter.Float64Histogram(
		"specd.http.request_duration_seconds",
		metric.WithDescription("Session API latency by operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 240),
	)
	if err != nil {
		m.logger.Warn(context.Background(), "failed to create duration histogram", zap.Error(err))
	}

	m.inFlight, err = m.meter.Int64UpDownCounter(
		"specd.http.in_flight_requests",
		metric.WithDescription("Session API requests currently being served, by operation."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn(context.Background(), "failed to create in-flight counter", zap.Error(err))
	}
}

// Middleware returns an Echo middleware that records the instruments.
func (m *RequestMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			operation := attribute.String("operation", operationFor(c.Request().Method, c.Path()))
			op := metric.WithAttributes(operation)

			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1, op)
				defer m.inFlight.Add(ctx, -1, op)
			}

			start := time.Now()
			err := next(c)
			elapsed := time.Since(start).Seconds()

			attrs := metric.WithAttributes(
				operation,
				attribute.String("status_class", statusClass(responseStatus(c, err))),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, elapsed, attrs)
			}
			return err
		}
	}
}

// operationFor maps a method and matched route to its operation name.
func operationFor(method, route string) string {
	if route == "" {
		return "unmatched"
	}
	if op, ok := routeOperations[method+" "+route]; ok {
		return op
	}
	return "other"
}

// responseStatus is the status the client will see. A handler error that
// has not been written yet is rendered later by Echo's error handler.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
