package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/service"
)

func newMetricsRouter(h *MetricsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/metrics", h.Prometheus)
	router.GET("/metrics/summary", h.Snapshot)
	router.GET("/ready", h.Ready)
	return router
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.ObserveGeneration(service.GenerationOutcomeSuccess, 3, 30, 5*time.Millisecond)
	router := newMetricsRouter(NewMetricsHandler(metrics, nil, nil))

	w := serve(router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `timetable_generations_total{outcome="success"} 1`)

	w = serve(router, http.MethodGet, "/metrics/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"generations_succeeded":1`)
	assert.Contains(t, w.Body.String(), `"average_attempts":3`)
}

func TestMetricsHandlerPrometheusDisabled(t *testing.T) {
	router := newMetricsRouter(NewMetricsHandler(nil, nil, nil))

	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	healthy := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"postgres": func(ctx context.Context) error { return nil },
	}, nil)
	w := serve(newMetricsRouter(healthy), http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)

	broken := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	}, nil)
	w = serve(newMetricsRouter(broken), http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
	assert.NotContains(t, w.Body.String(), "postgres")
}
