package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

// 请求级指标。标签使用路由模板而不是原始路径，
// 避免 /users/123 这类带 ID 的路径把指标基数撑爆。
var (
	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipgram_http_requests_total",
			Help: "Total number of HTTP requests handled, by route, method and status code.",
		},
		[]string{"route", "method", "status"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clipgram_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds, by route and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	authRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipgram_auth_rejections_total",
			Help: "Requests rejected with 401 or 403.",
		},
		[]string{"status"},
	)
)

// InitPrometheus registers the HTTP metrics with the default registry.
// 必须在挂载 MonitorMiddleware 之前调用一次。
func InitPrometheus() {
	prometheus.MustRegister(requestCounter, requestDuration, authRejections)
}

// MonitorMiddleware records request count, latency and auth rejections
// for every request passing through the router.
func MonitorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// WriteHeader 可能不会被显式调用，默认按 200 统计
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		status := strconv.Itoa(rec.status)

		requestCounter.WithLabelValues(route, r.Method, status).Inc()
		requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())

		if rec.status == http.StatusUnauthorized || rec.status == http.StatusForbidden {
			authRejections.WithLabelValues(status).Inc()
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
