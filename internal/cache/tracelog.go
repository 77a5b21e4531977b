package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

const traceLogWriteTimeout = 2 * time.Second

// TraceLog indexes JSON log records by their trace_id field so that all
// records of one trace can be read back together. It is an io.Writer meant
// to sit next to the regular log output.
type TraceLog struct {
	cache   *RedisCache
	ttl     time.Duration
	dropped atomic.Int64
}

func NewTraceLog(cache *RedisCache, ttl time.Duration) *TraceLog {
	return &TraceLog{cache: cache, ttl: ttl}
}

// Write stores p under its trace id. Records without one are ignored, and
// Redis failures are counted rather than returned so logging never fails.
func (t *TraceLog) Write(p []byte) (int, error) {
	var rec struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(p, &rec); err != nil || rec.TraceID == "" {
		return len(p), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), traceLogWriteTimeout)
	defer cancel()

	line := bytes.TrimRight(p, "\n")
	if err := t.cache.Append(ctx, TraceLogKey(rec.TraceID), line, t.ttl); err != nil {
		t.dropped.Add(1)
	}
	return len(p), nil
}

// Dropped reports how many records could not be stored.
func (t *TraceLog) Dropped() int64 {
	return t.dropped.Load()
}

// Entries returns the records logged under traceID, oldest first.
func (t *TraceLog) Entries(ctx context.Context, traceID string) ([]map[string]any, error) {
	raw, err := t.cache.List(ctx, TraceLogKey(traceID))
	if err != nil {
		return nil, err
	}

	entries := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		var entry map[string]any
		if err := json.Unmarshal(r, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode trace entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
