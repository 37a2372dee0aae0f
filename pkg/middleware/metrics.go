package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ekaya-inc/schema-assistant/pkg/metrics"
)

// unmatchedPath labels requests no route matched, so arbitrary URLs don't
// create new series.
const unmatchedPath = "unmatched"

// Metrics records request count, latency, and in-flight requests. It must
// wrap the ServeMux so the matched route pattern is available as the path
// label.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		wrapped := wrapResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		path := routeLabel(r.Pattern)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routeLabel drops the method from a "POST /api/chat" style pattern.
func routeLabel(pattern string) string {
	if pattern == "" {
		return unmatchedPath
	}
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}
