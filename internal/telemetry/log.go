package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// reservedFields are set by the logger itself and never taken from a payload.
var reservedFields = map[string]bool{
	"trace_id": true,
	"span_id":  true,
	"level":    true,
	"message":  true,
	"time":     true,
	"service":  true,
}

const (
	articlePrefixLen = 100
	promptPrefixLen  = 200
	outputPrefixLen  = 500
)

// LogWithTrace emits msg with payload as structured fields.
//
// The trace id is taken from traceID when valid, otherwise from the span in
// ctx. span_id is attached only when the span in ctx belongs to that trace.
// Without either, the record is written untagged. Payload keys that collide
// with the logger's own fields are dropped.
func (t *Telemetry) LogWithTrace(ctx context.Context, level zerolog.Level, msg string, payload map[string]any, traceID trace.TraceID) {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !traceID.IsValid() && spanCtx.IsValid() {
		traceID = spanCtx.TraceID()
	}

	event := t.Logger.WithLevel(level)
	if traceID.IsValid() {
		event = event.Str("trace_id", traceID.String())
		if spanCtx.IsValid() && spanCtx.TraceID() == traceID {
			event = event.Str("span_id", spanCtx.SpanID().String())
		}
	}
	fields := make(map[string]any, len(payload))
	for k, v := range payload {
		if !reservedFields[k] {
			fields[k] = v
		}
	}
	event.Fields(fields).Msg(msg)
}

// LogExtractionStep records one LLM extraction step: truncated input
// article, prompt template and output, plus the business when set.
func (t *Telemetry) LogExtractionStep(ctx context.Context, event, article, promptTemplate string, output any, business string) {
	payload := map[string]any{
		"article": truncate(article, articlePrefixLen),
		"prompt":  truncate(promptTemplate, promptPrefixLen),
		"output":  truncate(render(output), outputPrefixLen),
	}
	if business != "" {
		payload["business"] = business
	}
	t.LogWithTrace(ctx, zerolog.InfoLevel, event, payload, trace.TraceID{})
}

func render(v any) string {
	switch o := v.(type) {
	case string:
		return o
	case []byte:
		return string(o)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
