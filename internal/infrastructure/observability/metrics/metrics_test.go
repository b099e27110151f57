package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
)

func TestPublishRefresh(t *testing.T) {
	m := New(prometheus.NewRegistry())
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.PublishRefresh(context.Background(), port.RefreshStats{
		CompletedAt:     at,
		Duration:        2 * time.Second,
		ProvidersLoaded: 3,
		ProvidersFailed: 1,
		Applications:    10,
		RulesFailed:     1,
		Success:         true,
	}))
	require.NoError(t, m.PublishRefresh(context.Background(), port.RefreshStats{
		ProvidersFailed: 4,
		Applications:    0,
	}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshesTotal.WithLabelValues("failure")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ProvidersFailed))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.Applications), "failed cycles keep the last published size")
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.LastSuccessUnixTime))
}

func TestMiddleware(t *testing.T) {
	m := New(prometheus.NewRegistry())
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/applications/app-42", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/v1/applications/{id}", http.MethodGet, "404")))
}

func TestMiddleware_CountsRejections(t *testing.T) {
	m := New(prometheus.NewRegistry())
	status := http.StatusUnauthorized
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/cache/refresh", nil))
	status = http.StatusTooManyRequests
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/cache/refresh", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/cache/refresh", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RateLimitDropped))
}

func TestNormalizeRoute(t *testing.T) {
	tests := map[string]string{
		"/ws":                      "/ws",
		"/healthz":                 "/healthz",
		"/api/v1/cache/health":     "/api/v1/cache/health",
		"/api/v1/applications/a-1": "/api/v1/applications/{id}",
		"/favicon.ico":             "other",
	}
	for path, want := range tests {
		assert.Equal(t, want, normalizeRoute(path), path)
	}
}
