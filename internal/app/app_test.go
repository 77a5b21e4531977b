package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"news-reader/internal/config"
	"news-reader/internal/services/extraction"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{WriteTimeout: 10 * time.Second},
		LLM: config.LLMConfig{
			Provider:            config.ProviderMock,
			Model:               "o3-mini",
			Temperature:         1,
			MaxCompletionTokens: 4096,
			Timeout:             time.Second,
		},
		Telemetry: config.TelemetryConfig{ServiceName: "news-reader-test", LogLevel: "error", UserName: "ana"},
		Redis:     config.RedisConfig{TraceLogTTL: time.Hour},
		Dataset:   config.DatasetConfig{File: "unused.jsonl", SamplePerClass: 5, Seed: 31},
	}
}

func extract(t *testing.T, h http.Handler, body string) ([]*extraction.ArticleInfo, []string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/articles/extract", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Results  []*extraction.ArticleInfo `json:"results"`
		TraceIDs []string                  `json:"trace_ids"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Results, resp.TraceIDs
}

func TestNew_MockProviderWithoutBackends(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, mockConfig())
	require.NoError(t, err)
	defer a.Close(ctx)

	assert.Nil(t, a.Cache)
	assert.Nil(t, a.DB)

	h := a.Router()
	results, traceIDs := extract(t, h, `{"articles":["Acme shares rose 5% on Monday."]}`)
	require.Len(t, results, 1)
	want := extraction.MockArticleInfo()
	assert.Equal(t, &want, results[0])
	require.Len(t, traceIDs, 1)
	assert.Len(t, traceIDs[0], 32)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNew_TraceLogJoinsFeedback(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := mockConfig()
	cfg.Redis.Addr = mr.Addr()
	cfg.Telemetry.LogLevel = "info"

	ctx := context.Background()
	a, err := New(ctx, cfg)
	require.NoError(t, err)
	defer a.Close(ctx)

	h := a.Router()
	_, traceIDs := extract(t, h, `{"articles":["Acme shares rose 5% on Monday."]}`)
	traceID := traceIDs[0]

	entries, err := a.TraceLog.Entries(ctx, traceID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, traceID, e["trace_id"])
	}

	body := `{"feedback":"downvote","result_key":"summary","trace_id":"` + traceID + `"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/feedback", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	after, err := a.TraceLog.Entries(ctx, traceID)
	require.NoError(t, err)
	assert.Len(t, after, len(entries)+1)
	assert.Equal(t, "feedback", after[len(after)-1]["message"])
}

func TestNew_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := mockConfig()
	cfg.Redis.Addr = mr.Addr()
	mr.Close()

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "Redis")
}
