package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"news-reader/internal/app"
	"news-reader/internal/config"
	"news-reader/internal/dataset"

	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		extractPath = flag.String("extract", "", "Extract info from the articles in a file or directory, print JSON and exit")
		port        = flag.String("port", "", "Port to run the server on (overrides PORT)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	logger := a.Telemetry.Logger

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Shutdown error")
		}
	}()

	if *extractPath != "" {
		if err := extractFile(ctx, a, *extractPath); err != nil {
			logger.Error().Err(err).Msg("Extraction failed")
			a.Close(context.Background())
			os.Exit(1)
		}
		return
	}

	a.Monitor.Start(ctx, cfg.Evaluation.Interval)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      a.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server error")
		return
	}
	logger.Info().Msg("Server stopped")
}

func extractFile(ctx context.Context, a *app.App, path string) error {
	rows, err := dataset.Load(path)
	if err != nil {
		return err
	}
	articles := make([]string, len(rows))
	for i, row := range rows {
		articles[i] = row.Article
	}

	results, traceIDs := a.Extractor.ExtractInfoFromArticles(ctx, articles)

	type item struct {
		TraceID string `json:"trace_id"`
		Result  any    `json:"result"`
	}
	out := make([]item, len(results))
	for i := range results {
		out[i] = item{TraceID: traceIDs[i].String(), Result: results[i]}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
