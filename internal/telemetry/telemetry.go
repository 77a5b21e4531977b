// Package telemetry owns the process-wide logger and tracer provider.
//
// A single Telemetry value is built in main and handed to every component
// that logs or opens spans. Log records emitted through it carry the 128-bit
// trace id (and span id when known) so that every step of one article's
// extraction, and any feedback given on its result later, share one join key.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"news-reader/internal/config"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "news-reader/extraction"

var registerOnce sync.Once

type Telemetry struct {
	Logger zerolog.Logger

	serviceName  string
	provider     *sdktrace.TracerProvider
	tracer       trace.Tracer
	shutdownOnce sync.Once
	shutdownErr  error
}

// Options configures New. A nil Exporter keeps spans in-process only. Logs go
// to Output, or stderr when unset, so stdout stays free for command output.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	Console     bool
	Output      io.Writer
	Writers     []io.Writer
	Exporter    sdktrace.SpanExporter
	// Syncer exports spans synchronously; used by tests.
	Syncer bool
}

// New builds a Telemetry from explicit options.
func New(opts Options) *Telemetry {
	if opts.ServiceName == "" {
		opts.ServiceName = "news-reader"
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	writers := append([]io.Writer{out}, opts.Writers...)

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(opts.Level).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()

	providerOpts := []sdktrace.TracerProviderOption{}
	if opts.Exporter != nil {
		if opts.Syncer {
			providerOpts = append(providerOpts, sdktrace.WithSyncer(opts.Exporter))
		} else {
			providerOpts = append(providerOpts, sdktrace.WithBatcher(opts.Exporter))
		}
	}
	provider := sdktrace.NewTracerProvider(providerOpts...)

	return &Telemetry{
		Logger:      logger,
		serviceName: opts.ServiceName,
		provider:    provider,
		tracer:      provider.Tracer(instrumentationName),
	}
}

// Setup builds the process Telemetry from configuration and installs its
// tracer provider as the OpenTelemetry global. The global is installed at
// most once per process.
func Setup(ctx context.Context, cfg config.TelemetryConfig, writers ...io.Writer) (*Telemetry, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var exporter sdktrace.SpanExporter
	if cfg.OTLPEndpoint != "" {
		exporter, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	}

	t := New(Options{
		ServiceName: cfg.ServiceName,
		Level:       level,
		Console:     cfg.LogFormat == "console",
		Writers:     writers,
		Exporter:    exporter,
	})

	if exporter == nil {
		t.Logger.Warn().Msg("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT not set - traces not exported")
	} else {
		t.Logger.Info().Str("endpoint", cfg.OTLPEndpoint).Msg("Tracer configured - exporting spans")
	}

	registerOnce.Do(func() {
		otel.SetTracerProvider(t.provider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	})

	return t, nil
}

// Nop returns a Telemetry that discards logs and exports nothing.
func Nop() *Telemetry {
	return New(Options{Output: io.Discard, Level: zerolog.Disabled})
}

// TracerProvider exposes the provider for HTTP instrumentation.
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.provider
}

// StartSpan opens a span tagged with the service name.
func (t *Telemetry) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	opts = append(opts, trace.WithAttributes(attribute.String("service.name", t.serviceName)))
	return t.tracer.Start(ctx, name, opts...)
}

// Shutdown flushes and stops the tracer provider. Safe to call twice.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	t.shutdownOnce.Do(func() {
		t.shutdownErr = t.provider.Shutdown(ctx)
	})
	return t.shutdownErr
}
