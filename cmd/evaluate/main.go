package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"news-reader/internal/app"
	"news-reader/internal/config"
)

// evaluate runs the extraction pipeline once over the evaluation sample,
// prints the metrics and exits non-zero when any is below its threshold.
func main() {
	var (
		datasetPath = flag.String("dataset", "", "Evaluate rows from a local file or directory instead of the datasets server")
		perClass    = flag.Int("per-class", 0, "Rows per class in the sample (overrides DATASET_SAMPLE_PER_CLASS)")
		seed        = flag.Int64("seed", 0, "Sampling seed (overrides DATASET_SEED)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *datasetPath != "" {
		cfg.Dataset.File = *datasetPath
	}
	if *perClass > 0 {
		cfg.Dataset.SamplePerClass = *perClass
	}
	if *seed != 0 {
		cfg.Dataset.Seed = *seed
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg))
}

func run(ctx context.Context, cfg *config.Config) int {
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Printf("Failed to initialize: %v", err)
		return 2
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Close(shutdownCtx)
	}()

	res, err := a.Monitor.RunOnce(ctx)
	if err != nil {
		a.Telemetry.Logger.Error().Err(err).Msg("Evaluation failed")
		return 2
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return 2
	}
	if !res.Passed {
		return 1
	}
	return 0
}
