package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/specd/internal/logging"
)

func collectRequests(t *testing.T, reader *sdkmetric.ManualReader) (map[string]int64, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	foundDuration := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "specd.http.requests_total":
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					op, _ := dp.Attributes.Value("operation")
					class, _ := dp.Attributes.Value("status_class")
					counts[op.AsString()+" "+class.AsString()] += dp.Value
				}
			case "specd.http.request_duration_seconds":
				foundDuration = true
			}
		}
	}
	return counts, foundDuration
}

func TestRequestMetrics_Middleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newRequestMetrics(mp.Meter(httpInstrumentationName), logging.NewNop())

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/v1/sessions/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
		}
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
	})
	e.POST("/api/v1/sessions/:id/messages", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	})
	e.GET("/api/v1/sessions/:id/spec", func(c echo.Context) error {
		return errors.New("boom")
	})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/api/v1/sessions/a1"},
		{http.MethodGet, "/api/v1/sessions/b2"},
		{http.MethodGet, "/api/v1/sessions/missing"},
		{http.MethodPost, "/api/v1/sessions/a1/messages"},
		{http.MethodGet, "/api/v1/sessions/a1/spec"},
		{http.MethodGet, "/nowhere"},
	} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(r.method, r.path, nil))
	}

	counts, foundDuration := collectRequests(t, reader)
	assert.True(t, foundDuration)
	assert.Equal(t, int64(1), counts["health 2xx"])
	assert.Equal(t, int64(2), counts["get_session 2xx"], "session ids are folded into the operation")
	assert.Equal(t, int64(1), counts["get_session 4xx"])
	assert.Equal(t, int64(1), counts["send_message 4xx"], "unwritten HTTP errors use their code")
	assert.Equal(t, int64(1), counts["download_spec 5xx"])
	for key := range counts {
		assert.NotContains(t, key, "a1")
		assert.NotContains(t, key, "b2")
	}
}

func TestRequestMetrics_InFlightReturnsToZero(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newRequestMetrics(mp.Meter(httpInstrumentationName), logging.NewNop())

	e := echo.New()
	e.Use(m.Middleware())
	e.POST("/api/v1/sessions", func(c echo.Context) error {
		return errors.New("capacity")
	})
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if metric.Name != "specd.http.in_flight_requests" {
				continue
			}
			found = true
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				assert.Equal(t, int64(0), dp.Value)
				op, _ := dp.Attributes.Value(attribute.Key("operation"))
				assert.Equal(t, "create_session", op.AsString())
			}
		}
	}
	assert.True(t, found)
}

func TestOperationFor(t *testing.T) {
	tests := []struct {
		method, route, want string
	}{
		{http.MethodGet, "", "unmatched"},
		{http.MethodGet, "/health", "health"},
		{http.MethodPost, "/api/v1/sessions/:id/messages", "send_message"},
		{http.MethodDelete, "/api/v1/sessions/:id", "delete_session"},
		{http.MethodPut, "/api/v1/sessions/:id", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.route, func(t *testing.T) {
			assert.Equal(t, tt.want, operationFor(tt.method, tt.route))
		})
	}
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(http.StatusNoContent))
	assert.Equal(t, "4xx", statusClass(http.StatusConflict))
	assert.Equal(t, "5xx", statusClass(http.StatusBadGateway))
	assert.Equal(t, "unknown", statusClass(0))
}
