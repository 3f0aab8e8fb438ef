package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/consentgate/internal/metrics"
)

// WithMetrics registra contadores y latencia por request. Usa el route
// pattern de chi como label (no el path crudo, que tiene cardinalidad
// abierta por los IDs).
func WithMetrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					path = p
				}
			}
			metrics.ObserveHTTP(r.Method, path, strconv.Itoa(rec.status), time.Since(start).Seconds())
		})
	}
}
