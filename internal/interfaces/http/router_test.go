package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GanizaniSitara/controls-ux/internal/application/aggregation"
	"github.com/GanizaniSitara/controls-ux/internal/application/usecase"
	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/fitness"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
	"github.com/GanizaniSitara/controls-ux/internal/infrastructure/observability/metrics"
	"github.com/GanizaniSitara/controls-ux/internal/interfaces/http/handler"
	"github.com/GanizaniSitara/controls-ux/pkg/config"
)

type stubCache struct{ refreshes int }

func (s *stubCache) view() *aggregation.View {
	raw := entity.RawSnapshot{"p": {"app1": {"x": int64(1)}}}
	return &aggregation.View{Snapshot: entity.NewCacheSnapshot(raw, nil, entity.CacheMetadata{Size: 1}), Source: aggregation.SourceLive}
}

func (s *stubCache) GetSnapshot(context.Context) (*aggregation.View, error) { return s.view(), nil }

func (s *stubCache) GetHealth(context.Context) *aggregation.Health {
	return &aggregation.Health{Status: valueobject.HealthHealthy, Source: aggregation.SourceLive}
}

func (s *stubCache) GetApplicationDetail(_ context.Context, appID string) (*aggregation.ApplicationDetail, error) {
	return &aggregation.ApplicationDetail{AppID: appID, Source: aggregation.SourceLive}, nil
}

func (s *stubCache) Refresh(context.Context) error {
	s.refreshes++
	return nil
}

func newTestRouter(t *testing.T, security config.SecurityConfig) (http.Handler, *stubCache) {
	t.Helper()
	cache := &stubCache{}
	registry := prometheus.NewRegistry()

	rt := NewRouter(
		handler.NewCacheHandler(cache, nil),
		handler.NewFitnessHandler(cache, usecase.NewCalculateFitnessUseCase(fitness.NewRegistry(nil), nil), nil),
		nil,
		metrics.New(registry),
		registry,
		security,
		nil,
	)
	t.Cleanup(rt.Close)
	return rt.Setup(), cache
}

func do(h http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthAndMetricsAreOpen(t *testing.T) {
	h, _ := newTestRouter(t, config.SecurityConfig{AuthEnabled: true, AuthToken: "secret"})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/readyz", nil).Code)

	do(h, http.MethodGet, "/api/v1/cache/health", nil)
	rec := do(h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "controls_http_auth_failures_total 1")
}

func TestRouter_Auth(t *testing.T) {
	h, _ := newTestRouter(t, config.SecurityConfig{AuthEnabled: true, AuthToken: "secret"})

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/v1/cache/snapshot", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/v1/cache/snapshot", map[string]string{"Authorization": "Bearer wrong"}).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/cache/snapshot", map[string]string{"Authorization": "Bearer secret"}).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/applications/app1", map[string]string{"X-API-Key": "secret"}).Code)
}

func TestRouter_RefreshIsRateLimited(t *testing.T) {
	h, cache := newTestRouter(t, config.SecurityConfig{RefreshRatePerMinute: 1})

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/v1/cache/refresh", nil).Code)
	rec := do(h, http.MethodPost, "/api/v1/cache/refresh", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, cache.refreshes)

	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodPost, "/api/v1/cache/refresh", map[string]string{"X-Forwarded-For": "10.0.0.9"}).Code,
		"forwarding headers from an untrusted peer are ignored")
	assert.Equal(t, 1, cache.refreshes)
}

func TestRouter_RateLimitBehindTrustedProxy(t *testing.T) {
	// httptest requests arrive from 192.0.2.1.
	h, cache := newTestRouter(t, config.SecurityConfig{RefreshRatePerMinute: 1, TrustedProxies: []string{"192.0.2.0/24"}})

	first := map[string]string{"X-Forwarded-For": "10.0.0.8"}
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/v1/cache/refresh", first).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodPost, "/api/v1/cache/refresh", first).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/v1/cache/refresh", map[string]string{"X-Forwarded-For": "10.0.0.9"}).Code,
		"limits are per forwarded client")
	assert.Equal(t, 2, cache.refreshes)
}

func TestRouter_MethodsAndCompression(t *testing.T) {
	h, _ := newTestRouter(t, config.SecurityConfig{})

	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodGet, "/api/v1/cache/refresh", nil).Code)

	rec := do(h, http.MethodGet, "/healthz", map[string]string{"Accept-Encoding": "gzip"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"), "tiny bodies stay plain")
	assert.Equal(t, "Accept-Encoding", rec.Header().Get("Vary"))
	assert.Equal(t, "ok", rec.Body.String())
}
