// Package monitor periodically evaluates the extraction pipeline against the
// labelled dataset sample and keeps the latest result.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"news-reader/internal/cache"
	"news-reader/internal/dataset"
	"news-reader/internal/services/evaluation"
	"news-reader/internal/telemetry"
)

var ErrNoResult = errors.New("no evaluation result yet")

// Store keeps the latest result outside the process.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Result is the outcome of one evaluation run.
type Result struct {
	Metrics    evaluation.Metrics `json:"metrics"`
	Rows       int                `json:"rows"`
	Passed     bool               `json:"passed"`
	Failures   []string           `json:"failures,omitempty"`
	ComputedAt time.Time          `json:"computed_at"`
	Duration   time.Duration      `json:"duration_ns"`
}

type Monitor struct {
	source     dataset.Source
	extractor  evaluation.Extractor
	runner     *evaluation.Runner
	thresholds evaluation.Thresholds
	tel        *telemetry.Telemetry
	store      Store

	mu     sync.RWMutex
	latest *Result

	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type Option func(*Monitor)

func WithThresholds(t evaluation.Thresholds) Option {
	return func(m *Monitor) { m.thresholds = t }
}

func WithStore(s Store) Option {
	return func(m *Monitor) { m.store = s }
}

func New(source dataset.Source, ex evaluation.Extractor, runner *evaluation.Runner, tel *telemetry.Telemetry, opts ...Option) *Monitor {
	if tel == nil {
		tel = telemetry.Nop()
	}
	if runner == nil {
		runner = evaluation.NewRunner(tel, nil)
	}
	m := &Monitor{
		source:     source,
		extractor:  ex,
		runner:     runner,
		thresholds: evaluation.DefaultThresholds(),
		tel:        tel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the background evaluation. A non-positive interval leaves the
// monitor off.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		m.tel.Logger.Info().Msg("Quality monitor disabled")
		return
	}
	m.ticker = time.NewTicker(interval)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-m.ticker.C:
				if _, err := m.RunOnce(ctx); err != nil {
					m.tel.Logger.Error().Err(err).Msg("Failed to run evaluation")
				}
			case <-m.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	m.tel.Logger.Info().Dur("interval", interval).Msg("Quality monitor started")
}

// Stop stops the background evaluation and waits for a running one to end.
// Safe to call more than once, and without Start.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.ticker != nil {
			m.ticker.Stop()
		}
		close(m.done)
		m.wg.Wait()
		m.tel.Logger.Info().Msg("Quality monitor stopped")
	})
}

// RunOnce loads the sample, evaluates it and records the result. Metrics
// below threshold are reported in the result, not as an error.
func (m *Monitor) RunOnce(ctx context.Context) (*Result, error) {
	start := time.Now()

	rows, err := m.source.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluation rows: %w", err)
	}

	metrics, err := m.runner.Run(ctx, m.extractor, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate: %w", err)
	}

	res := &Result{
		Metrics:    *metrics,
		Rows:       len(rows),
		Passed:     true,
		ComputedAt: start.UTC(),
		Duration:   time.Since(start),
	}
	if err := metrics.Check(m.thresholds); err != nil {
		res.Passed = false
		for _, e := range unjoin(err) {
			res.Failures = append(res.Failures, e.Error())
		}
		m.tel.Logger.Warn().Strs("failures", res.Failures).Msg("Evaluation below threshold")
	}

	m.mu.Lock()
	m.latest = res
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Set(ctx, cache.EvaluationKey, res, cache.EvaluationTTL); err != nil {
			m.tel.Logger.Warn().Err(err).Msg("Failed to store evaluation result")
		}
	}

	m.tel.Logger.Info().
		Dur("duration", res.Duration).
		Int("rows", res.Rows).
		Bool("passed", res.Passed).
		Msg("Evaluation completed")
	return res, nil
}

// Latest returns the most recent result, falling back to the store after a
// restart.
func (m *Monitor) Latest(ctx context.Context) (*Result, error) {
	m.mu.RLock()
	latest := m.latest
	m.mu.RUnlock()
	if latest != nil {
		return latest, nil
	}
	if m.store == nil {
		return nil, ErrNoResult
	}

	data, err := m.store.Get(ctx, cache.EvaluationKey)
	if errors.Is(err, cache.ErrKeyNotFound) {
		return nil, ErrNoResult
	}
	if err != nil {
		return nil, err
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to decode stored result: %w", err)
	}
	return &res, nil
}

func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
