package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"news-reader/internal/api"
	"news-reader/internal/services/extraction"
	"news-reader/internal/services/feedback"
	"news-reader/internal/services/monitor"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const maxBodyBytes = 4 << 20

// ArticleExtractor runs the article pipeline on a batch.
type ArticleExtractor interface {
	ExtractInfoFromArticles(ctx context.Context, articles []string) ([]*extraction.ArticleInfo, []trace.TraceID)
}

// FeedbackService records and reads viewer feedback.
type FeedbackService interface {
	Record(ctx context.Context, e feedback.Event) (feedback.Event, error)
	Load(ctx context.Context, q feedback.Query) ([]feedback.Event, error)
	LoadEntriesWithFeedback(ctx context.Context, q feedback.Query) ([]feedback.Entry, error)
}

// EvaluationSource returns the latest quality monitor result.
type EvaluationSource interface {
	Latest(ctx context.Context) (*monitor.Result, error)
}

// NewsHandler handles the viewer API
type NewsHandler struct {
	extractor  ArticleExtractor
	feedback   FeedbackService
	evaluation EvaluationSource
	logger     zerolog.Logger
}

// NewNewsHandler creates a new NewsHandler. evaluation may be nil.
func NewNewsHandler(extractor ArticleExtractor, fb FeedbackService, evaluation EvaluationSource, logger zerolog.Logger) *NewsHandler {
	return &NewsHandler{
		extractor:  extractor,
		feedback:   fb,
		evaluation: evaluation,
		logger:     logger,
	}
}

// RegisterRoutes registers all viewer routes
func (h *NewsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/articles/extract", h.Extract)
		r.Post("/feedback", h.CreateFeedback)
		r.Get("/feedback", h.ListFeedback)
		r.Get("/feedback/entries", h.ListEntries)
		r.Get("/evaluation", h.LatestEvaluation)
	})
}

// Extract runs the extraction pipeline on every submitted article
func (h *NewsHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req api.ExtractRequest
	if err := decodeBody(w, r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrCodeBadRequest, "invalid request body")
		return
	}

	if len(req.Articles) == 0 {
		api.WriteError(w, http.StatusBadRequest, api.ErrCodeValidation, "articles is required")
		return
	}
	if len(req.Articles) > api.MaxArticles {
		api.WriteError(w, http.StatusBadRequest, api.ErrCodeValidation,
			fmt.Sprintf("at most %d articles per request", api.MaxArticles))
		return
	}

	results, traceIDs := h.extractor.ExtractInfoFromArticles(r.Context(), req.Articles)

	resp := api.ExtractResponse{
		Results:  results,
		TraceIDs: make([]string, len(traceIDs)),
	}
	for i, id := range traceIDs {
		resp.TraceIDs[i] = id.String()
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// CreateFeedback records one vote
func (h *NewsHandler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	var req api.FeedbackRequest
	if err := decodeBody(w, r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrCodeBadRequest, "invalid request body")
		return
	}

	event, err := h.feedback.Record(r.Context(), feedback.Event{
		Feedback:  req.Feedback,
		ResultKey: req.ResultKey,
		TraceID:   req.TraceID,
		UserName:  req.UserName,
		Payload:   req.Payload,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, event)
}

// ListFeedback returns recent feedback of one kind
func (h *NewsHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrCodeValidation, err.Error())
		return
	}

	events, err := h.feedback.Load(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.FeedbackListResponse{Feedback: events})
}

// ListEntries returns the trace log records of recent feedback
func (h *NewsHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrCodeValidation, err.Error())
		return
	}

	entries, err := h.feedback.LoadEntriesWithFeedback(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.EntriesResponse{Entries: entries})
}

// LatestEvaluation returns the last quality monitor result
func (h *NewsHandler) LatestEvaluation(w http.ResponseWriter, r *http.Request) {
	if h.evaluation == nil {
		api.WriteError(w, http.StatusNotFound, api.ErrCodeNotFound, monitor.ErrNoResult.Error())
		return
	}

	res, err := h.evaluation.Latest(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}

func (h *NewsHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, feedback.ErrInvalidEvent):
		api.WriteError(w, http.StatusBadRequest, api.ErrCodeValidation, err.Error())
	case errors.Is(err, monitor.ErrNoResult):
		api.WriteError(w, http.StatusNotFound, api.ErrCodeNotFound, err.Error())
	default:
		h.logger.Error().Err(err).Msg("Request failed")
		api.WriteError(w, http.StatusInternalServerError, api.ErrCodeInternal, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseQuery reads feedback, result_key, hours, limit, user and all_users.
func parseQuery(r *http.Request) (feedback.Query, error) {
	values := r.URL.Query()
	q := feedback.Query{
		Feedback:  values.Get("feedback"),
		ResultKey: values.Get("result_key"),
		UserName:  values.Get("user"),
	}

	if q.Feedback == "" {
		return q, errors.New("feedback parameter is required")
	}
	if hoursStr := values.Get("hours"); hoursStr != "" {
		hours, err := strconv.ParseFloat(hoursStr, 64)
		if err != nil || hours <= 0 || hours > 24*30 {
			return q, errors.New("invalid hours value (must be 0-720)")
		}
		q.Hours = hours
	}
	if limitStr := values.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 100 {
			return q, errors.New("invalid limit value (must be 1-100)")
		}
		q.Limit = limit
	}
	if all := values.Get("all_users"); all != "" {
		v, err := strconv.ParseBool(strings.TrimSpace(all))
		if err != nil {
			return q, errors.New("invalid all_users value")
		}
		q.AllUsers = v
	}
	return q, nil
}
