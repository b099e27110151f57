package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GanizaniSitara/controls-ux/internal/infrastructure/observability/metrics"
	"github.com/GanizaniSitara/controls-ux/internal/interfaces/http/handler"
	"github.com/GanizaniSitara/controls-ux/internal/interfaces/http/middleware"
	"github.com/GanizaniSitara/controls-ux/pkg/config"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// Router wires the read API, the refresh trigger and the event stream.
type Router struct {
	mux              *http.ServeMux
	cacheHandler     *handler.CacheHandler
	fitnessHandler   *handler.FitnessHandler
	websocketHandler *handler.WebSocketHandler
	metrics          *metrics.Metrics
	gatherer         prometheus.Gatherer
	security         config.SecurityConfig
	logger           *logger.Logger

	apiLimiter     *middleware.IPRateLimiter
	refreshLimiter *middleware.IPRateLimiter
	clientIPs      *middleware.ClientIPResolver
}

// NewRouter creates the router. metrics and gatherer may be nil, which drops
// request instrumentation and the /metrics endpoint.
func NewRouter(
	cacheHandler *handler.CacheHandler,
	fitnessHandler *handler.FitnessHandler,
	websocketHandler *handler.WebSocketHandler,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	security config.SecurityConfig,
	logger *logger.Logger,
) *Router {
	ips, err := middleware.NewClientIPResolver(security.TrustedProxies)
	if err != nil {
		logger.Warn("Ignoring invalid trusted proxies", "error", err.Error())
	}
	return &Router{
		mux:              http.NewServeMux(),
		cacheHandler:     cacheHandler,
		fitnessHandler:   fitnessHandler,
		websocketHandler: websocketHandler,
		metrics:          m,
		gatherer:         gatherer,
		security:         security,
		logger:           logger,
		apiLimiter:       middleware.NewIPRateLimiter(security.RequestRatePerSecond, security.RequestBurst, 0),
		refreshLimiter:   middleware.PerMinute(security.RefreshRatePerMinute),
		clientIPs:        ips,
	}
}

// Setup registers every route and returns the wrapped handler.
func (rt *Router) Setup() http.Handler {
	// Health endpoints stay unauthenticated.
	rt.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rt.mux.HandleFunc("GET /readyz", rt.cacheHandler.Ready)

	if rt.gatherer != nil {
		rt.mux.Handle("GET /metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))
	}

	auth := middleware.Auth(middleware.AuthConfig{
		Enabled:     rt.security.AuthEnabled,
		BearerToken: rt.security.AuthToken,
	}, rt.logger)
	api := func(h http.HandlerFunc) http.Handler {
		return middleware.RateLimit(rt.apiLimiter, rt.clientIPs)(auth(h))
	}

	rt.mux.Handle("GET /api/v1/cache/health", api(rt.cacheHandler.Health))
	rt.mux.Handle("GET /api/v1/cache/snapshot", api(rt.cacheHandler.Snapshot))
	rt.mux.Handle("GET /api/v1/applications/{id}", api(rt.cacheHandler.Application))
	rt.mux.Handle("GET /api/v1/fitness-functions", api(rt.fitnessHandler.List))
	rt.mux.Handle("POST /api/v1/cache/refresh",
		middleware.RateLimit(rt.refreshLimiter, rt.clientIPs)(auth(http.HandlerFunc(rt.cacheHandler.Refresh))))

	if rt.websocketHandler != nil {
		rt.mux.HandleFunc("GET /ws", rt.websocketHandler.HandleConnection)
	}

	var h http.Handler = rt.mux
	h = middleware.Compression(middleware.DefaultCompressMinSize)(h)
	if rt.metrics != nil {
		h = rt.metrics.Middleware(h)
	}
	h = middleware.Logger(rt.logger)(h)
	h = middleware.Recovery(rt.logger)(h)

	return h
}

// Close stops the rate limiter cleanup goroutines.
func (rt *Router) Close() {
	rt.apiLimiter.Stop()
	rt.refreshLimiter.Stop()
}
