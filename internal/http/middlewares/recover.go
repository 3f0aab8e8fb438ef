package middlewares

import (
	"net/http"

	httperr "github.com/dropDatabas3/consentgate/internal/http/errors"
	"github.com/dropDatabas3/consentgate/internal/observability/logger"
)

// WithRecover atrapa panics del handler chain y responde 500 en vez de
// tirar la conexión. El panic se loguea con stacktrace.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.From(r.Context()).Error("panic recovered",
						logger.Any("panic", rec),
						logger.Path(r.URL.Path),
					)
					httperr.WriteError(w, httperr.ErrInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
