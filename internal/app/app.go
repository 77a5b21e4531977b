// Package app wires the service components from configuration. Both the API
// server and the evaluation command start from New.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"news-reader/internal/cache"
	"news-reader/internal/config"
	"news-reader/internal/dataset"
	httphandler "news-reader/internal/http"
	"news-reader/internal/metrics"
	"news-reader/internal/middleware"
	"news-reader/internal/repo"
	"news-reader/internal/services/evaluation"
	"news-reader/internal/services/extraction"
	"news-reader/internal/services/feedback"
	"news-reader/internal/services/monitor"
	"news-reader/internal/telemetry"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type App struct {
	Config    *config.Config
	Telemetry *telemetry.Telemetry
	Metrics   *metrics.Metrics

	// Cache and TraceLog are nil when REDIS_ADDR is unset, DB when
	// POSTGRES_URL is unset.
	Cache    *cache.RedisCache
	TraceLog *cache.TraceLog
	DB       *repo.DB

	HTTPClient *http.Client
	Extractor  *extraction.Extractor
	Feedback   *feedback.Service
	Monitor    *monitor.Monitor
}

// New connects to the configured backends and builds every component.
// Redis comes first so that the trace log can be attached to the logger.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New()}

	var writers []io.Writer
	if cfg.Redis.Addr != "" {
		c, err := cache.NewRedisCache(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.Cache = c
		a.TraceLog = cache.NewTraceLog(c, cfg.Redis.TraceLogTTL)
		writers = append(writers, a.TraceLog)
	}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, writers...)
	if err != nil {
		a.closeBackends()
		return nil, err
	}
	a.Telemetry = tel
	if a.Cache == nil {
		tel.Logger.Warn().Msg("REDIS_ADDR not set - trace log and dataset cache disabled")
	}

	if cfg.Database.URL != "" {
		db, err := repo.NewDB(ctx, cfg.Database.URL)
		if err != nil {
			a.closeBackends()
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			a.closeBackends()
			return nil, err
		}
		a.DB = db
	} else {
		tel.Logger.Warn().Msg("POSTGRES_URL not set - feedback is logged but not persisted")
	}

	a.HTTPClient = &http.Client{
		Timeout:   cfg.LLM.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(tel.TracerProvider())),
	}

	gen, err := extraction.NewGenerator(cfg.LLM, a.HTTPClient)
	if err != nil {
		a.closeBackends()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.Extractor = extraction.New(gen, tel, extraction.WithMetrics(a.Metrics))

	fbOpts := []feedback.Option{feedback.WithMetrics(a.Metrics)}
	if a.DB != nil {
		fbOpts = append(fbOpts, feedback.WithStore(repo.NewRepository(a.DB)))
	}
	if a.TraceLog != nil {
		fbOpts = append(fbOpts, feedback.WithTraceSource(a.TraceLog))
	}
	a.Feedback = feedback.NewService(tel, cfg.Telemetry.UserName, fbOpts...)

	dsOpts := []dataset.ClientOption{
		dataset.WithHTTPClient(&http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(tel.TracerProvider())),
		}),
		dataset.WithLogger(tel.Logger),
	}
	var monOpts []monitor.Option
	if a.Cache != nil {
		dsOpts = append(dsOpts, dataset.WithCache(a.Cache))
		monOpts = append(monOpts, monitor.WithStore(a.Cache))
	}
	source := dataset.NewSource(cfg.Dataset, time.Now(), dsOpts...)
	a.Monitor = monitor.New(source, a.Extractor, evaluation.NewRunner(tel, a.Metrics), tel, monOpts...)

	tel.Logger.Info().
		Str("provider", cfg.LLM.Provider).
		Str("model", cfg.LLM.Model).
		Msg("Application initialized")
	return a, nil
}

// Router builds the HTTP handler of the viewer API.
func (a *App) Router() http.Handler {
	router := httphandler.NewRouter(httphandler.RouterOptions{
		Logger:    a.Telemetry.Logger,
		Metrics:   a.Metrics,
		RateLimit: middleware.DefaultRateLimitConfig(),
		Timeout:   a.Config.Server.WriteTimeout,
	})
	router.RegisterNewsRoutes(httphandler.NewNewsHandler(a.Extractor, a.Feedback, a.Monitor, a.Telemetry.Logger))
	router.RegisterHealthRoutes(a.readyChecks())
	router.RegisterMetricsRoutes(a.Metrics)
	return router.Handler(a.Telemetry.TracerProvider())
}

func (a *App) readyChecks() map[string]httphandler.ReadyCheck {
	checks := map[string]httphandler.ReadyCheck{}
	if a.Cache != nil {
		checks["redis"] = a.Cache.Ping
	}
	if a.DB != nil {
		checks["postgres"] = a.DB.Ping
	}
	return checks
}

// Close stops the monitor, flushes spans and closes the backends.
func (a *App) Close(ctx context.Context) error {
	a.Monitor.Stop()
	err := a.Telemetry.Shutdown(ctx)
	if a.TraceLog != nil && a.TraceLog.Dropped() > 0 {
		a.Telemetry.Logger.Warn().Int64("dropped", a.TraceLog.Dropped()).Msg("Trace log records dropped")
	}
	return errors.Join(err, a.closeBackends())
}

func (a *App) closeBackends() error {
	var err error
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Cache != nil {
		err = a.Cache.Close()
	}
	return err
}
