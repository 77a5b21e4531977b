package middleware

import (
	"net/http"
	"runtime/debug"

	"news-reader/internal/api"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Recovery turns a panic into a 500 with the error envelope.
func Recovery(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error().
					Interface("panic", rec).
					Str("stack", string(debug.Stack())).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("url", r.URL.String()).
					Str("method", r.Method).
					Msg("Panic recovered")

				api.WriteError(w, http.StatusInternalServerError, api.ErrCodeInternal, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
