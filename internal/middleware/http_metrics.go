package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// normalizePath maps paths with dynamic segments to route patterns so
// metrics cardinality stays bounded. /v1/bookings/8f3a.../events becomes
// /v1/bookings/{id}/events.
func normalizePath(path string) string {
	staticRoutes := map[string]bool{
		"/":                        true,
		"/v1/bookings":             true,
		"/v1/quotes":               true,
		"/v1/rate-plans":           true,
		"/v1/tenants":              true,
		"/v1/invoices":             true,
		"/v1/audit":                true,
		"/v1/audit/verify":         true,
		"/v1/audit/export":         true,
		"/v1/ledger/trial-balance": true,
		"/v1/webhooks/stripe":      true,
		"/health":                  true,
		"/ready":                   true,
		"/metrics":                 true,
	}
	if staticRoutes[path] {
		return path
	}

	if strings.HasPrefix(path, "/v1/bookings/") {
		parts := strings.Split(path, "/")
		// /v1/bookings/{id}/events, /v1/bookings/{id}/ledger
		if len(parts) == 5 && (parts[4] == "events" || parts[4] == "ledger") {
			return "/v1/bookings/{id}/" + parts[4]
		}
		// /v1/bookings/{id}
		if len(parts) == 4 && parts[3] != "" {
			return "/v1/bookings/{id}"
		}
	}

	if strings.HasPrefix(path, "/v1/tenants/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] != "" {
			return "/v1/tenants/{id}"
		}
	}

	if strings.HasPrefix(path, "/v1/invoices/") {
		parts := strings.Split(path, "/")
		if len(parts) == 5 && parts[4] == "checkout" {
			return "/v1/invoices/{id}/checkout"
		}
		if len(parts) == 4 && parts[3] != "" {
			return "/v1/invoices/{id}"
		}
	}

	if strings.HasPrefix(path, "/v1/rate-plans/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] != "" {
			return "/v1/rate-plans/{room_type}"
		}
	}

	// Unknown patterns pass through so new routes still get metrics.
	return path
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code
// and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics records request duration, sizes, and counts. Health check
// endpoints are excluded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			duration := time.Since(start).Seconds()
			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				duration,
				requestSize,
				mrw.size,
			)
		})
	}
}
