package http

import (
	"context"
	"net/http"
	"time"

	"news-reader/internal/api"
	"news-reader/internal/metrics"
	"news-reader/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// ReadyCheck reports whether a dependency can serve requests.
type ReadyCheck func(ctx context.Context) error

type RouterOptions struct {
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	RateLimit *middleware.RateLimitConfig
	Timeout   time.Duration
}

type Router struct {
	chi.Router
}

func NewRouter(opts RouterOptions) *Router {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(opts.Logger))
	r.Use(chimiddleware.Timeout(opts.Timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "Traceparent"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.RateLimit(opts.RateLimit, opts.Logger))
	r.Use(middleware.Logging(opts.Logger, opts.Metrics))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, http.StatusNotFound, api.ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, http.StatusMethodNotAllowed, api.ErrCodeBadRequest, "method not allowed")
	})

	return &Router{r}
}

// RegisterNewsRoutes registers the viewer API routes
func (r *Router) RegisterNewsRoutes(newsHandler *NewsHandler) {
	newsHandler.RegisterRoutes(r)
}

// RegisterHealthRoutes registers health check routes. /ready fails while any
// check fails.
func (r *Router) RegisterHealthRoutes(checks map[string]ReadyCheck) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			api.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"checks": failed,
			})
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{
			"status":    "ready",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
}

// RegisterMetricsRoutes exposes the Prometheus registry
func (r *Router) RegisterMetricsRoutes(m *metrics.Metrics) {
	r.Method(http.MethodGet, "/metrics", m.Handler())
}

// Handler wraps the router in server-side tracing so every request runs in
// a span.
func (r *Router) Handler(tp trace.TracerProvider) http.Handler {
	return otelhttp.NewHandler(r, "news-reader",
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}
