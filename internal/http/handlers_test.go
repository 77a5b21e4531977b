package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"news-reader/internal/api"
	"news-reader/internal/metrics"
	"news-reader/internal/middleware"
	"news-reader/internal/repo"
	"news-reader/internal/services/extraction"
	"news-reader/internal/services/feedback"
	"news-reader/internal/services/monitor"
	"news-reader/internal/telemetry"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

var (
	traceOK   = trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	traceFail = trace.TraceID{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f, 0x20}
)

// stubExtractor fails articles containing "FAIL".
type stubExtractor struct {
	calls int
}

func (s *stubExtractor) ExtractInfoFromArticles(_ context.Context, articles []string) ([]*extraction.ArticleInfo, []trace.TraceID) {
	s.calls++
	infos := make([]*extraction.ArticleInfo, len(articles))
	ids := make([]trace.TraceID, len(articles))
	for i, a := range articles {
		if strings.Contains(a, "FAIL") {
			ids[i] = traceFail
			continue
		}
		infos[i] = &extraction.ArticleInfo{Title: "T", Summary: "S", BusinessInfo: []extraction.BusinessSpecificInfo{}}
		ids[i] = traceOK
	}
	return infos, ids
}

type stubEvaluation struct {
	res *monitor.Result
}

func (s stubEvaluation) Latest(context.Context) (*monitor.Result, error) {
	if s.res == nil {
		return nil, monitor.ErrNoResult
	}
	return s.res, nil
}

type failingFeedback struct{}

func (failingFeedback) Record(context.Context, feedback.Event) (feedback.Event, error) {
	return feedback.Event{}, errors.New("db down")
}

func (failingFeedback) Load(context.Context, feedback.Query) ([]feedback.Event, error) {
	return nil, errors.New("db down")
}

func (failingFeedback) LoadEntriesWithFeedback(context.Context, feedback.Query) ([]feedback.Entry, error) {
	return nil, errors.New("db down")
}

type server struct {
	handler   http.Handler
	extractor *stubExtractor
	metrics   *metrics.Metrics
}

func newServer(t *testing.T, fb FeedbackService, eval EvaluationSource, checks map[string]ReadyCheck) *server {
	t.Helper()
	m := metrics.New()
	ex := &stubExtractor{}
	if fb == nil {
		fb = feedback.NewService(telemetry.Nop(), "ana", feedback.WithStore(repo.NewMemoryRepository()))
	}

	router := NewRouter(RouterOptions{
		Logger:    zerolog.Nop(),
		Metrics:   m,
		RateLimit: &middleware.RateLimitConfig{RequestsPerMinute: 600, BurstSize: 100},
	})
	router.RegisterNewsRoutes(NewNewsHandler(ex, fb, eval, zerolog.Nop()))
	router.RegisterHealthRoutes(checks)
	router.RegisterMetricsRoutes(m)

	return &server{
		handler:   router.Handler(telemetry.Nop().TracerProvider()),
		extractor: ex,
		metrics:   m,
	}
}

func (s *server) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorInfo {
	t.Helper()
	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestExtract(t *testing.T) {
	s := newServer(t, nil, nil, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/articles/extract", `{"articles":["FAIL one","good one"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results  []json.RawMessage `json:"results"`
		TraceIDs []string          `json:"trace_ids"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Results, 2)
	assert.Equal(t, "null", string(body.Results[0]))
	assert.JSONEq(t, `{"title":"T","summary":"S","is_about_business":false,"business_info":[]}`, string(body.Results[1]))
	assert.Equal(t, []string{traceFail.String(), traceOK.String()}, body.TraceIDs)
}

func TestExtract_Validation(t *testing.T) {
	s := newServer(t, nil, nil, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed", `{"articles":`, api.ErrCodeBadRequest},
		{"unknown field", `{"docs":["a"]}`, api.ErrCodeBadRequest},
		{"empty", `{"articles":[]}`, api.ErrCodeValidation},
		{"too many", `{"articles":[` + strings.TrimSuffix(strings.Repeat(`"a",`, api.MaxArticles+1), ",") + `]}`, api.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/articles/extract", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
	assert.Zero(t, s.extractor.calls)
}

func TestFeedbackRoundTrip(t *testing.T) {
	s := newServer(t, nil, nil, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/feedback",
		`{"feedback":"upvote","result_key":"general_info","trace_id":"`+traceOK.String()+`","payload":{"title":"T"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created feedback.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "ana", created.UserName)
	assert.Equal(t, traceOK.String(), created.TraceID)

	rec = s.do(t, http.MethodGet, "/api/v1/feedback?feedback=upvote&result_key=general_info&hours=1&limit=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list api.FeedbackListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Feedback, 1)
	assert.JSONEq(t, `{"title":"T"}`, string(list.Feedback[0].Payload))

	rec = s.do(t, http.MethodGet, "/api/v1/feedback?feedback=downvote", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"feedback":[]}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/feedback/entries?feedback=upvote", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[]}`, rec.Body.String())
}

func TestFeedback_Errors(t *testing.T) {
	s := newServer(t, nil, nil, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/feedback", `{"feedback":"meh","trace_id":"`+traceOK.String()+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, api.ErrCodeValidation, decodeError(t, rec).Code)

	for _, target := range []string{
		"/api/v1/feedback",
		"/api/v1/feedback?feedback=upvote&limit=0",
		"/api/v1/feedback?feedback=upvote&hours=abc",
		"/api/v1/feedback/entries?feedback=upvote&all_users=maybe",
	} {
		rec := s.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	broken := newServer(t, failingFeedback{}, nil, nil)
	rec = broken.do(t, http.MethodGet, "/api/v1/feedback?feedback=upvote", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	info := decodeError(t, rec)
	assert.Equal(t, api.ErrCodeInternal, info.Code)
	assert.NotContains(t, info.Message, "db down")
}

func TestLatestEvaluation(t *testing.T) {
	s := newServer(t, nil, stubEvaluation{}, nil)
	rec := s.do(t, http.MethodGet, "/api/v1/evaluation", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, api.ErrCodeNotFound, decodeError(t, rec).Code)

	res := &monitor.Result{Rows: 10, Passed: true}
	res.Metrics.TitleAccuracy = 0.9
	s = newServer(t, nil, stubEvaluation{res: res}, nil)
	rec = s.do(t, http.MethodGet, "/api/v1/evaluation", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got monitor.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 10, got.Rows)
	assert.Equal(t, 0.9, got.Metrics.TitleAccuracy)
}

func TestHealthReadyMetrics(t *testing.T) {
	s := newServer(t, nil, nil, map[string]ReadyCheck{
		"redis": func(context.Context) error { return nil },
	})

	rec := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `news_reader_http_requests_total{method="GET",route="/ready",status="200"} 1`)

	rec = s.do(t, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, api.ErrCodeNotFound, decodeError(t, rec).Code)
}

func TestReady_FailingCheck(t *testing.T) {
	s := newServer(t, nil, nil, map[string]ReadyCheck{
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})

	rec := s.do(t, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
