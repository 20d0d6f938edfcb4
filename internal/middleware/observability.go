package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"feedsync/internal/metrics"
	"feedsync/internal/tracing"
)

// Observability adds request logging, metrics and tracing to the status
// server's HTTP handlers.
func Observability(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.StartSpan(r.Context(), "http_request")
			defer span.End()

			tracing.AddSpanAttributes(ctx,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
			)
			r = r.WithContext(ctx)

			wrapper := &responseWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			start := time.Now()
			next.ServeHTTP(wrapper, r)
			duration := time.Since(start)

			labels := map[string]string{
				"method":   r.Method,
				"endpoint": r.URL.Path,
				"status":   strconv.Itoa(wrapper.statusCode),
			}
			metrics.IncrementCounter("http_requests_total", labels, "Total HTTP requests")
			metrics.RecordTimer("http_request_duration", duration, labels, "HTTP request duration")

			logger.WithFields(logrus.Fields{
				"method":      r.Method,
				"url":         r.URL.Path,
				"status":      wrapper.statusCode,
				"duration_ms": duration.Milliseconds(),
				"trace_id":    tracing.GetTraceID(ctx),
			}).Debug("HTTP request completed")
		})
	}
}

// responseWrapper captures the status code written by the handler.
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
