// Package extraction turns raw article text into structured ArticleInfo by
// chaining single-purpose LLM calls. Every call runs in its own span and
// logs one record tagged with the trace id of the article being processed.
package extraction

import (
	"context"
	"fmt"
	"time"

	"news-reader/internal/metrics"
	"news-reader/internal/services/llm"
	"news-reader/internal/telemetry"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span and log event names of the extraction steps.
const (
	StepGeneralInfo          = "extract_general_info"
	StepBusinessCategory     = "extract_business_category"
	StepBusinessesInvolved   = "extract_businesses_involved"
	StepBusinessSpecificInfo = "extract_business_specific_info"
	StepBusinessInfo         = "extract_business_info"
	StepArticleInfo          = "extract_article_info"
)

// BusinessFilter decides which involved businesses get a detail extraction.
type BusinessFilter func(business string) bool

// AcceptAll is the default BusinessFilter.
func AcceptAll(string) bool { return true }

// Extractor runs the extraction steps against a Generator.
type Extractor struct {
	gen       llm.Generator
	tel       *telemetry.Telemetry
	metrics   *metrics.Metrics
	templates Templates
	filter    BusinessFilter
	genOpts   []llm.Option
}

type Option func(*Extractor)

func WithTemplates(t Templates) Option {
	return func(e *Extractor) { e.templates = t }
}

func WithBusinessFilter(f BusinessFilter) Option {
	return func(e *Extractor) { e.filter = f }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// WithGenerateOptions applies opts to every generation call.
func WithGenerateOptions(opts ...llm.Option) Option {
	return func(e *Extractor) { e.genOpts = append(e.genOpts, opts...) }
}

func New(gen llm.Generator, tel *telemetry.Telemetry, opts ...Option) *Extractor {
	e := &Extractor{
		gen:       gen,
		tel:       tel,
		templates: DefaultTemplates(),
		filter:    AcceptAll,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tel == nil {
		e.tel = telemetry.Nop()
	}
	return e
}

func (e *Extractor) Templates() Templates {
	return e.templates
}

// ExtractGeneralInfo extracts the title and summary of article.
func (e *Extractor) ExtractGeneralInfo(ctx context.Context, template, article string) (*GeneralInfo, error) {
	return extract[GeneralInfo](ctx, e, step{name: StepGeneralInfo, template: template, article: article})
}

// ExtractBusinessCategory extracts whether article is about business.
func (e *Extractor) ExtractBusinessCategory(ctx context.Context, template, article string) (*BusinessCategory, error) {
	return extract[BusinessCategory](ctx, e, step{name: StepBusinessCategory, template: template, article: article})
}

// ExtractBusinessesInvolved extracts the businesses article talks about.
func (e *Extractor) ExtractBusinessesInvolved(ctx context.Context, template, article string) (*BusinessesInvolved, error) {
	return extract[BusinessesInvolved](ctx, e, step{name: StepBusinessesInvolved, template: template, article: article})
}

// ExtractBusinessSpecificInfo extracts the expected stock impact of article
// on business.
func (e *Extractor) ExtractBusinessSpecificInfo(ctx context.Context, template, article, business string) (*BusinessSpecificInfo, error) {
	return extract[BusinessSpecificInfo](ctx, e, step{
		name:        StepBusinessSpecificInfo,
		template:    template,
		article:     article,
		business:    business,
		forBusiness: true,
	})
}

// ExtractBusinessInfo extracts the businesses involved in article, then the
// specific info of each one accepted by the filter. Order follows the
// businesses step and duplicates are kept.
func (e *Extractor) ExtractBusinessInfo(ctx context.Context, involvedTemplate, specificTemplate, article string) ([]BusinessSpecificInfo, error) {
	ctx, span := e.tel.StartSpan(ctx, StepBusinessInfo)
	defer span.End()

	involved, err := e.ExtractBusinessesInvolved(ctx, involvedTemplate, article)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	infos := make([]BusinessSpecificInfo, 0, len(involved.Businesses))
	for _, business := range involved.Businesses {
		if !e.filter(business) {
			continue
		}
		info, err := e.ExtractBusinessSpecificInfo(ctx, specificTemplate, article, business)
		if err != nil {
			failSpan(span, err)
			return nil, err
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

type step struct {
	name        string
	template    string
	article     string
	business    string
	forBusiness bool
}

// extract is the shared shape of every single extraction step: format the
// prompt, generate a T, log the step. Errors are returned to the caller.
func extract[T any](ctx context.Context, e *Extractor, s step) (*T, error) {
	ctx, span := e.tel.StartSpan(ctx, s.name)
	defer span.End()

	var (
		prompt string
		err    error
	)
	if s.forBusiness {
		prompt, err = FormatBusinessPrompt(s.template, s.article, s.business)
	} else {
		prompt, err = FormatPrompt(s.template, s.article)
	}
	if err != nil {
		failSpan(span, err)
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	start := time.Now()
	out, err := llm.GenerateObject[T](ctx, e.gen, prompt, e.genOpts...)
	e.metrics.ObserveStep(s.name, time.Since(start), err)
	if err != nil {
		failSpan(span, err)
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	e.tel.LogExtractionStep(ctx, s.name, s.article, s.template, out, s.business)
	return out, nil
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
