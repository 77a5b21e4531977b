// Package evaluation scores extraction output against a labelled sample.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"news-reader/internal/dataset"
	"news-reader/internal/metrics"
	"news-reader/internal/services/extraction"
	"news-reader/internal/telemetry"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const titleSuffix = " - bbc news"

var (
	// ErrNoResults is returned when a ratio has nothing to divide by: no
	// rows, or every extraction failed.
	ErrNoResults      = errors.New("evaluation: no successful results")
	ErrLengthMismatch = errors.New("evaluation: results and rows differ in length")
	ErrInvalidRow     = errors.New("evaluation: invalid row")
)

// Metrics is the outcome of one evaluation run.
type Metrics struct {
	GeneralInfoSuccessRate         float64 `json:"general_info_success_rate"`
	TitleAccuracy                  float64 `json:"title_accuracy"`
	BusinessClassificationAccuracy float64 `json:"business_classification_accuracy"`
	SummarizationRouge1            float64 `json:"summarization_rouge_1"`
	SummarizationRouge2            float64 `json:"summarization_rouge_2"`
	SummarizationRougeL            float64 `json:"summarization_rouge_l"`
}

func (m Metrics) Fields() map[string]any {
	return map[string]any{
		"general_info_success_rate":        m.GeneralInfoSuccessRate,
		"title_accuracy":                   m.TitleAccuracy,
		"business_classification_accuracy": m.BusinessClassificationAccuracy,
		"summarization_rouge_1":            m.SummarizationRouge1,
		"summarization_rouge_2":            m.SummarizationRouge2,
		"summarization_rouge_l":            m.SummarizationRougeL,
	}
}

// Thresholds are the minimum acceptable metric values.
type Thresholds struct {
	SuccessRate                    float64
	TitleAccuracy                  float64
	BusinessClassificationAccuracy float64
	Rouge1                         float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		SuccessRate:                    0.8,
		TitleAccuracy:                  0.5,
		BusinessClassificationAccuracy: 0.7,
		Rouge1:                         0.15,
	}
}

// Check returns one joined error per metric below its threshold.
func (m Metrics) Check(t Thresholds) error {
	var errs []error
	check := func(name string, got, want float64) {
		if got < want {
			errs = append(errs, fmt.Errorf("%s %.3f below threshold %.3f", name, got, want))
		}
	}
	check("general_info_success_rate", m.GeneralInfoSuccessRate, t.SuccessRate)
	check("title_accuracy", m.TitleAccuracy, t.TitleAccuracy)
	check("business_classification_accuracy", m.BusinessClassificationAccuracy, t.BusinessClassificationAccuracy)
	check("summarization_rouge_1", m.SummarizationRouge1, t.Rouge1)
	return errors.Join(errs...)
}

// SuccessRate is the fraction of non-nil results.
func SuccessRate[T any](results []*T) (float64, error) {
	if len(results) == 0 {
		return 0, ErrNoResults
	}
	n := 0
	for _, r := range results {
		if r != nil {
			n++
		}
	}
	return float64(n) / float64(len(results)), nil
}

// NormalizeTitle lower-cases title and removes every " - bbc news".
func NormalizeTitle(title string) string {
	return strings.ReplaceAll(strings.ToLower(title), titleSuffix, "")
}

// TitleAccuracy is the fraction of extracted titles equal to the row title
// after normalisation, over rows with a result.
func TitleAccuracy(infos []*extraction.GeneralInfo, rows []dataset.Row) (float64, error) {
	if len(infos) != len(rows) {
		return 0, ErrLengthMismatch
	}
	matched, total := 0, 0
	for i, row := range rows {
		if infos[i] == nil {
			continue
		}
		total++
		if NormalizeTitle(infos[i].Title) == NormalizeTitle(row.Title) {
			matched++
		}
	}
	return ratio(matched, total)
}

// BusinessClassificationAccuracy is the fraction of predicted business flags
// equal to the row label, over rows with a result.
func BusinessClassificationAccuracy(categories []*extraction.BusinessCategory, rows []dataset.Row) (float64, error) {
	if len(categories) != len(rows) {
		return 0, ErrLengthMismatch
	}
	correct, total := 0, 0
	for i, row := range rows {
		if categories[i] == nil {
			continue
		}
		total++
		if categories[i].IsAboutBusiness == row.IsBusiness {
			correct++
		}
	}
	return ratio(correct, total)
}

// Summarization averages the ROUGE F-scores of extracted summaries against
// row descriptions, over rows with a result.
func Summarization(infos []*extraction.GeneralInfo, rows []dataset.Row) (RougeScores, error) {
	if len(infos) != len(rows) {
		return RougeScores{}, ErrLengthMismatch
	}
	var sum RougeScores
	n := 0
	for i, row := range rows {
		if infos[i] == nil {
			continue
		}
		r1, r2, rl := Rouge(infos[i].Summary, row.Description)
		sum.Rouge1 += r1.F
		sum.Rouge2 += r2.F
		sum.RougeL += rl.F
		n++
	}
	if n == 0 {
		return RougeScores{}, ErrNoResults
	}
	return RougeScores{
		Rouge1: sum.Rouge1 / float64(n),
		Rouge2: sum.Rouge2 / float64(n),
		RougeL: sum.RougeL / float64(n),
	}, nil
}

func ratio(num, den int) (float64, error) {
	if den == 0 {
		return 0, ErrNoResults
	}
	return float64(num) / float64(den), nil
}

// Extractor is the part of the extraction pipeline the harness drives.
type Extractor interface {
	Templates() extraction.Templates
	ExtractGeneralInfoFromArticles(ctx context.Context, template string, articles []string) []*extraction.GeneralInfo
	ExtractBusinessCategoryFromArticles(ctx context.Context, template string, articles []string) []*extraction.BusinessCategory
}

// Runner runs evaluations and reports their metrics.
type Runner struct {
	tel     *telemetry.Telemetry
	metrics *metrics.Metrics
}

func NewRunner(tel *telemetry.Telemetry, m *metrics.Metrics) *Runner {
	if tel == nil {
		tel = telemetry.Nop()
	}
	return &Runner{tel: tel, metrics: m}
}

// Run evaluates ex on rows with the default runner.
func Run(ctx context.Context, ex Extractor, rows []dataset.Row) (*Metrics, error) {
	return NewRunner(nil, nil).Run(ctx, ex, rows)
}

// Run extracts general info and business category for every row, computes
// all metrics, logs them as one record and updates the evaluation gauges.
func (r *Runner) Run(ctx context.Context, ex Extractor, rows []dataset.Row) (*Metrics, error) {
	if len(rows) == 0 {
		return nil, ErrNoResults
	}
	for i, row := range rows {
		if row.Article == "" || row.Title == "" {
			return nil, fmt.Errorf("row %d: %w: article and title are required", i, ErrInvalidRow)
		}
	}

	ctx, span := r.tel.StartSpan(ctx, "run_evaluation")
	defer span.End()

	articles := make([]string, len(rows))
	for i, row := range rows {
		articles[i] = row.Article
	}

	templates := ex.Templates()
	infos := ex.ExtractGeneralInfoFromArticles(ctx, templates.GeneralInfo, articles)
	categories := ex.ExtractBusinessCategoryFromArticles(ctx, templates.BusinessCategory, articles)

	var (
		m   Metrics
		err error
	)
	if m.GeneralInfoSuccessRate, err = SuccessRate(infos); err != nil {
		return nil, fmt.Errorf("success rate: %w", err)
	}
	if m.TitleAccuracy, err = TitleAccuracy(infos, rows); err != nil {
		return nil, fmt.Errorf("title accuracy: %w", err)
	}
	if m.BusinessClassificationAccuracy, err = BusinessClassificationAccuracy(categories, rows); err != nil {
		return nil, fmt.Errorf("business classification accuracy: %w", err)
	}
	scores, err := Summarization(infos, rows)
	if err != nil {
		return nil, fmt.Errorf("summarization: %w", err)
	}
	m.SummarizationRouge1 = scores.Rouge1
	m.SummarizationRouge2 = scores.Rouge2
	m.SummarizationRougeL = scores.RougeL

	fields := m.Fields()
	for name, v := range fields {
		r.metrics.SetEvaluation(name, v.(float64))
	}
	fields["rows"] = len(rows)
	r.tel.LogWithTrace(ctx, zerolog.InfoLevel, "evaluation", fields, trace.TraceID{})

	return &m, nil
}
