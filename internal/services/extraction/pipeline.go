package extraction

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Stage is a state of the article-level pipeline. Stages only move forward.
type Stage int

const (
	StageStart Stage = iota
	StageGeneralInfo
	StageBusinessCategory
	StageBusinessInfo
	StageSkip
	StageAggregate
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "START"
	case StageGeneralInfo:
		return "GENERAL_INFO"
	case StageBusinessCategory:
		return "BUSINESS_CATEGORY"
	case StageBusinessInfo:
		return "BUSINESS_INFO"
	case StageSkip:
		return "SKIP"
	case StageAggregate:
		return "AGGREGATE"
	case StageDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// ExtractArticleInfo runs every extraction step for one article under a new
// trace. The trace id is returned even when a step fails, so the failure
// can be found in the logs.
func (e *Extractor) ExtractArticleInfo(ctx context.Context, article string) (*ArticleInfo, trace.TraceID, error) {
	startOpts := []trace.SpanStartOption{trace.WithNewRoot()}
	if parent := trace.SpanContextFromContext(ctx); parent.IsValid() {
		startOpts = append(startOpts, trace.WithLinks(trace.Link{SpanContext: parent}))
	}
	ctx, span := e.tel.StartSpan(ctx, StepArticleInfo, startOpts...)
	defer span.End()
	traceID := span.SpanContext().TraceID()

	e.tel.LogWithTrace(ctx, zerolog.InfoLevel, StepArticleInfo, map[string]any{"article": article}, traceID)

	info, err := e.runStages(ctx, article, traceID)
	e.metrics.ArticleProcessed(err)
	if err != nil {
		failSpan(span, err)
		return nil, traceID, err
	}
	return info, traceID, nil
}

func (e *Extractor) runStages(ctx context.Context, article string, traceID trace.TraceID) (*ArticleInfo, error) {
	var (
		general      *GeneralInfo
		category     *BusinessCategory
		businessInfo = []BusinessSpecificInfo{}
		result       *ArticleInfo
		err          error
	)

	stage := StageStart
	for stage != StageDone {
		next := stage
		switch stage {
		case StageStart:
			next = StageGeneralInfo
		case StageGeneralInfo:
			if general, err = e.ExtractGeneralInfo(ctx, e.templates.GeneralInfo, article); err != nil {
				return nil, err
			}
			next = StageBusinessCategory
		case StageBusinessCategory:
			if category, err = e.ExtractBusinessCategory(ctx, e.templates.BusinessCategory, article); err != nil {
				return nil, err
			}
			next = StageSkip
			if category.IsAboutBusiness {
				next = StageBusinessInfo
			}
		case StageBusinessInfo:
			if businessInfo, err = e.ExtractBusinessInfo(ctx, e.templates.BusinessesInvolved, e.templates.BusinessSpecific, article); err != nil {
				return nil, err
			}
			next = StageAggregate
		case StageSkip:
			next = StageAggregate
		case StageAggregate:
			result = &ArticleInfo{
				Title:           general.Title,
				Summary:         general.Summary,
				IsAboutBusiness: category.IsAboutBusiness,
				BusinessInfo:    businessInfo,
			}
			next = StageDone
		}

		e.tel.LogWithTrace(ctx, zerolog.DebugLevel, "stage transition", map[string]any{
			"from": stage.String(),
			"to":   next.String(),
		}, traceID)
		stage = next
	}
	return result, nil
}
