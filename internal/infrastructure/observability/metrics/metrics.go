package metrics

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
)

// Metrics bundles the collectors of the aggregation service. It implements
// port.MetricsPublisher for refresh statistics.
type Metrics struct {
	RefreshesTotal      *prometheus.CounterVec
	RefreshDurationSec  prometheus.Histogram
	ProvidersLoaded     prometheus.Gauge
	ProvidersFailed     prometheus.Gauge
	Applications        prometheus.Gauge
	RulesFailed         prometheus.Gauge
	LastSuccessUnixTime prometheus.Gauge

	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	AuthFailures       prometheus.Counter
	RateLimitDropped   prometheus.Counter
}

// New creates the collectors and registers them on registry.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "controls_refresh_total",
			Help: "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		RefreshDurationSec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "controls_refresh_duration_seconds",
			Help:    "Duration of refresh cycles in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ProvidersLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "controls_providers_loaded",
			Help: "Providers loaded in the last refresh cycle.",
		}),
		ProvidersFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "controls_providers_failed",
			Help: "Providers that failed in the last refresh cycle.",
		}),
		Applications: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "controls_applications",
			Help: "Applications in the published snapshot.",
		}),
		RulesFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "controls_rules_failed",
			Help: "Rules that errored in the last refresh cycle.",
		}),
		LastSuccessUnixTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "controls_last_successful_refresh_timestamp_seconds",
			Help: "Unix time of the last successful refresh cycle.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "controls_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "controls_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "controls_http_auth_failures_total",
			Help: "Total number of requests rejected for a missing or wrong token.",
		}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "controls_http_ratelimit_dropped_total",
			Help: "Total number of requests dropped by the rate limiter.",
		}),
	}

	registry.MustRegister(
		m.RefreshesTotal,
		m.RefreshDurationSec,
		m.ProvidersLoaded,
		m.ProvidersFailed,
		m.Applications,
		m.RulesFailed,
		m.LastSuccessUnixTime,
		m.RequestsTotal,
		m.RequestDurationSec,
		m.AuthFailures,
		m.RateLimitDropped,
	)

	return m
}

// PublishRefresh records one refresh cycle.
func (m *Metrics) PublishRefresh(_ context.Context, stats port.RefreshStats) error {
	outcome := "success"
	if !stats.Success {
		outcome = "failure"
	}
	m.RefreshesTotal.WithLabelValues(outcome).Inc()
	m.RefreshDurationSec.Observe(stats.Duration.Seconds())
	m.ProvidersLoaded.Set(float64(stats.ProvidersLoaded))
	m.ProvidersFailed.Set(float64(stats.ProvidersFailed))
	m.RulesFailed.Set(float64(stats.RulesFailed))

	if stats.Success {
		m.Applications.Set(float64(stats.Applications))
		at := stats.CompletedAt
		if at.IsZero() {
			at = time.Now()
		}
		m.LastSuccessUnixTime.Set(float64(at.Unix()))
	}
	return nil
}

// Flush is a no-op; collectors are scraped.
func (m *Metrics) Flush(context.Context) error {
	return nil
}

// Middleware counts and times HTTP requests.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())

		switch wrapped.statusCode {
		case http.StatusUnauthorized:
			m.AuthFailures.Inc()
		case http.StatusTooManyRequests:
			m.RateLimitDropped.Inc()
		}
	})
}

// normalizeRoute keeps label cardinality bounded.
func normalizeRoute(path string) string {
	switch {
	case path == "/ws", path == "/metrics", path == "/healthz", path == "/readyz":
		return path
	case strings.HasPrefix(path, "/api/v1/applications/"):
		return "/api/v1/applications/{id}"
	case strings.HasPrefix(path, "/api/v1/"):
		return path
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack passes websocket upgrades through.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
