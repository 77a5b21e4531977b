// Package feedback records viewer votes on extraction results and reads them
// back, optionally joined with the log records of the trace they refer to.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"news-reader/internal/metrics"
	"news-reader/internal/repo"
	"news-reader/internal/telemetry"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const (
	Upvote   = "upvote"
	Downvote = "downvote"

	DefaultHours = 2
	DefaultLimit = 5
)

var ErrInvalidEvent = errors.New("invalid feedback event")

// Event is one vote on a displayed result. ResultKey names the part of the
// result that was voted on, TraceID the extraction that produced it.
type Event struct {
	Feedback  string          `json:"feedback"`
	ResultKey string          `json:"result_key"`
	TraceID   string          `json:"trace_id"`
	UserName  string          `json:"user_name"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (e Event) validate() (trace.TraceID, error) {
	if e.Feedback != Upvote && e.Feedback != Downvote {
		return trace.TraceID{}, fmt.Errorf("%w: feedback must be %q or %q, got %q", ErrInvalidEvent, Upvote, Downvote, e.Feedback)
	}
	traceID, err := trace.TraceIDFromHex(strings.ToLower(e.TraceID))
	if err != nil {
		return trace.TraceID{}, fmt.Errorf("%w: trace_id must be 32 hex characters", ErrInvalidEvent)
	}
	if len(e.Payload) > 0 && !json.Valid(e.Payload) {
		return trace.TraceID{}, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidEvent)
	}
	return traceID, nil
}

// Query selects feedback of one kind from the last Hours hours. An empty
// UserName means the service's own user unless AllUsers is set.
type Query struct {
	Feedback  string
	ResultKey string
	Hours     float64
	Limit     int
	UserName  string
	AllUsers  bool
}

// Entry is one trace log record annotated with the feedback given on its
// trace.
type Entry struct {
	Record        map[string]any `json:"record"`
	Feedback      string         `json:"feedback"`
	FeedbackEntry Event          `json:"feedback_entry"`
}

// TraceSource returns the log records of one trace, oldest first.
type TraceSource interface {
	Entries(ctx context.Context, traceID string) ([]map[string]any, error)
}

type Service struct {
	tel      *telemetry.Telemetry
	store    repo.Repository
	traces   TraceSource
	metrics  *metrics.Metrics
	userName string
	now      func() time.Time
}

type Option func(*Service)

func WithStore(s repo.Repository) Option {
	return func(svc *Service) { svc.store = s }
}

func WithTraceSource(t TraceSource) Option {
	return func(svc *Service) { svc.traces = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(svc *Service) { svc.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

func NewService(tel *telemetry.Telemetry, userName string, opts ...Option) *Service {
	if tel == nil {
		tel = telemetry.Nop()
	}
	s := &Service{
		tel:      tel,
		userName: userName,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record logs the event under its trace id and persists it when a store is
// configured. The stored event is returned.
func (s *Service) Record(ctx context.Context, e Event) (Event, error) {
	traceID, err := e.validate()
	if err != nil {
		return Event{}, err
	}
	if e.UserName == "" {
		e.UserName = s.userName
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	payload := map[string]any{}
	if len(e.Payload) > 0 {
		var extra map[string]any
		if json.Unmarshal(e.Payload, &extra) == nil {
			for k, v := range extra {
				payload[k] = v
			}
		} else {
			payload["payload"] = e.Payload
		}
	}
	payload["feedback"] = e.Feedback
	payload["result_key"] = e.ResultKey
	payload["user_name"] = e.UserName
	s.tel.LogWithTrace(ctx, zerolog.InfoLevel, "feedback", payload, traceID)
	s.metrics.FeedbackRecorded(e.Feedback)

	if s.store == nil {
		return e, nil
	}
	stored, err := s.store.CreateFeedback(ctx, repo.CreateFeedbackParams{
		Feedback:  e.Feedback,
		ResultKey: e.ResultKey,
		TraceID:   traceID.String(),
		UserName:  e.UserName,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
	})
	if err != nil {
		return Event{}, fmt.Errorf("failed to store feedback: %w", err)
	}
	return fromRepo(stored), nil
}

// Load returns matching feedback, newest first.
func (s *Service) Load(ctx context.Context, q Query) ([]Event, error) {
	if q.Feedback != Upvote && q.Feedback != Downvote {
		return nil, fmt.Errorf("%w: unknown feedback %q", ErrInvalidEvent, q.Feedback)
	}
	q = s.withDefaults(q)
	if s.store == nil {
		s.tel.Logger.Warn().Str("feedback", q.Feedback).Msg("No feedback store configured")
		return []Event{}, nil
	}

	rows, err := s.store.ListFeedback(ctx, repo.ListFeedbackParams{
		Feedback:  q.Feedback,
		Since:     s.now().Add(-time.Duration(q.Hours * float64(time.Hour))),
		ResultKey: q.ResultKey,
		UserName:  q.UserName,
		Limit:     int32(q.Limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}

	events := make([]Event, len(rows))
	for i, row := range rows {
		events[i] = fromRepo(row)
	}
	return events, nil
}

// LoadEntriesWithFeedback returns, for each matching feedback event, the log
// records of its trace in time order. The result is cut to the query limit.
// A trace whose records cannot be read is skipped with a warning.
func (s *Service) LoadEntriesWithFeedback(ctx context.Context, q Query) ([]Entry, error) {
	events, err := s.Load(ctx, q)
	if err != nil {
		return nil, err
	}
	limit := s.withDefaults(q).Limit

	entries := []Entry{}
	if len(events) == 0 {
		return entries, nil
	}
	if s.traces == nil {
		s.tel.Logger.Warn().Msg("No trace log configured")
		return entries, nil
	}

	for _, ev := range events {
		records, err := s.traces.Entries(ctx, ev.TraceID)
		if err != nil {
			s.tel.Logger.Warn().Err(err).Str("trace_id", ev.TraceID).Msg("Failed to read trace entries")
			continue
		}
		for _, rec := range records {
			entries = append(entries, Entry{Record: rec, Feedback: ev.Feedback, FeedbackEntry: ev})
		}
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Service) withDefaults(q Query) Query {
	if q.Hours <= 0 {
		q.Hours = DefaultHours
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.UserName == "" && !q.AllUsers {
		q.UserName = s.userName
	}
	return q
}

func fromRepo(f repo.Feedback) Event {
	return Event{
		Feedback:  f.Feedback,
		ResultKey: f.ResultKey,
		TraceID:   f.TraceID,
		UserName:  f.UserName,
		Payload:   f.Payload,
		CreatedAt: f.CreatedAt,
	}
}
