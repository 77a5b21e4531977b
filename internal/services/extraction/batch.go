package extraction

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ExtractInfoFromArticles runs ExtractArticleInfo on every article in
// order. A failed article leaves a nil result but still gets a trace id:
// its own when one was allocated, otherwise the trace of the span in ctx.
func (e *Extractor) ExtractInfoFromArticles(ctx context.Context, articles []string) ([]*ArticleInfo, []trace.TraceID) {
	fallback := trace.SpanContextFromContext(ctx).TraceID()

	infos := make([]*ArticleInfo, len(articles))
	traceIDs := make([]trace.TraceID, len(articles))
	for i, article := range articles {
		info, traceID, err := e.ExtractArticleInfo(ctx, article)
		if !traceID.IsValid() {
			traceID = fallback
		}
		if err != nil {
			e.tel.LogWithTrace(ctx, zerolog.ErrorLevel, "article extraction failed", map[string]any{
				"index": i,
				"error": err.Error(),
			}, traceID)
			info = nil
		}
		infos[i] = info
		traceIDs[i] = traceID
	}
	return infos, traceIDs
}

// ExtractGeneralInfoFromArticles runs the general info step on every
// article. Failed articles are nil.
func (e *Extractor) ExtractGeneralInfoFromArticles(ctx context.Context, template string, articles []string) []*GeneralInfo {
	return extractEach(ctx, e, articles, func(ctx context.Context, article string) (*GeneralInfo, error) {
		return e.ExtractGeneralInfo(ctx, template, article)
	})
}

// ExtractBusinessCategoryFromArticles runs the business category step on
// every article. Failed articles are nil.
func (e *Extractor) ExtractBusinessCategoryFromArticles(ctx context.Context, template string, articles []string) []*BusinessCategory {
	return extractEach(ctx, e, articles, func(ctx context.Context, article string) (*BusinessCategory, error) {
		return e.ExtractBusinessCategory(ctx, template, article)
	})
}

func extractEach[T any](ctx context.Context, e *Extractor, articles []string, fn func(context.Context, string) (*T, error)) []*T {
	out := make([]*T, len(articles))
	for i, article := range articles {
		v, err := fn(ctx, article)
		if err != nil {
			e.tel.LogWithTrace(ctx, zerolog.ErrorLevel, "exception in article", map[string]any{
				"index": i,
				"error": err.Error(),
			}, trace.TraceID{})
			continue
		}
		out[i] = v
	}
	return out
}
