// metrics.go — Prometheus метрики HTTP-запросов к каталогу.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_http_requests_total",
		Help: "Общее количество HTTP-запросов к Catalog Module",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cm_http_request_duration_seconds",
		Help:    "Длительность HTTP-запросов к Catalog Module в секундах",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "path"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cm_http_requests_in_flight",
		Help: "Количество HTTP-запросов, обрабатываемых в данный момент",
	})
)

// MetricsMiddleware собирает метрики по шаблону маршрута chi
// (/api/v1/movies/{movie_id}), чтобы movie_id не раздувал кардинальность.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			rec := recordStatus(w)
			next.ServeHTTP(rec, r)

			path := routeLabel(r)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// routeLabel берёт шаблон маршрута из chi, а для запросов мимо маршрутов
// (404, отказ middleware до роутинга) нормализует путь вручную.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" && pattern != "/*" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/openapi.yaml",
		"/api/v1/movies",
		"/api/v1/movies/stats",
		"/api/v1/imports",
		"/api/v1/imports/validate",
		"/api/v1/maintenance/sweep":
		return path
	}

	const moviesPrefix = "/api/v1/movies/"
	if rest, ok := strings.CutPrefix(path, moviesPrefix); ok && rest != "" && !strings.Contains(rest, "/") {
		return moviesPrefix + "{movie_id}"
	}
	return "other"
}
