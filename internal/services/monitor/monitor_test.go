package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"news-reader/internal/cache"
	"news-reader/internal/dataset"
	"news-reader/internal/services/extraction"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rows = []dataset.Row{
	{Article: "a1", Title: "Markets rally - BBC News", Description: "Shares rose sharply.", IsBusiness: true},
	{Article: "a2", Title: "Rates held", Description: "The bank held rates.", IsBusiness: true},
	{Article: "a3", Title: "Cup final", Description: "The home side won.", IsBusiness: false},
	{Article: "a4", Title: "Storm warning", Description: "Heavy rain expected.", IsBusiness: false},
}

type staticSource struct {
	rows  []dataset.Row
	err   error
	calls atomic.Int32
}

func (s *staticSource) Rows(context.Context) ([]dataset.Row, error) {
	s.calls.Add(1)
	return s.rows, s.err
}

// echoExtractor returns each row's own title and description and calls every
// article business.
type echoExtractor struct{}

func (echoExtractor) Templates() extraction.Templates { return extraction.DefaultTemplates() }

func (echoExtractor) ExtractGeneralInfoFromArticles(_ context.Context, _ string, articles []string) []*extraction.GeneralInfo {
	out := make([]*extraction.GeneralInfo, len(articles))
	for i, a := range articles {
		for _, row := range rows {
			if row.Article == a {
				out[i] = &extraction.GeneralInfo{Title: row.Title, Summary: row.Description}
			}
		}
	}
	return out
}

func (echoExtractor) ExtractBusinessCategoryFromArticles(_ context.Context, _ string, articles []string) []*extraction.BusinessCategory {
	out := make([]*extraction.BusinessCategory, len(articles))
	for i := range articles {
		out[i] = &extraction.BusinessCategory{IsAboutBusiness: true}
	}
	return out
}

func TestRunOnce(t *testing.T) {
	m := New(&staticSource{rows: rows}, echoExtractor{}, nil, nil)

	res, err := m.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, 1.0, res.Metrics.GeneralInfoSuccessRate)
	assert.Equal(t, 1.0, res.Metrics.TitleAccuracy)
	assert.Equal(t, 0.5, res.Metrics.BusinessClassificationAccuracy)
	assert.InDelta(t, 1.0, res.Metrics.SummarizationRouge1, 1e-9)
	assert.False(t, res.Passed)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "business_classification_accuracy")

	latest, err := m.Latest(context.Background())
	require.NoError(t, err)
	assert.Same(t, res, latest)
}

func TestRunOnce_SourceError(t *testing.T) {
	m := New(&staticSource{err: errors.New("hub down")}, echoExtractor{}, nil, nil)

	_, err := m.RunOnce(context.Background())
	assert.ErrorContains(t, err, "hub down")

	_, err = m.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestStartStop(t *testing.T) {
	src := &staticSource{rows: rows}
	m := New(src, echoExtractor{}, nil, nil)

	m.Start(context.Background(), 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, err := m.Latest(context.Background())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	m.Stop()
	m.Stop()
	calls := src.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, src.calls.Load())
}

func TestStart_DisabledAtZero(t *testing.T) {
	src := &staticSource{rows: rows}
	m := New(src, echoExtractor{}, nil, nil)

	m.Start(context.Background(), 0)
	time.Sleep(20 * time.Millisecond)
	m.Stop()
	assert.Zero(t, src.calls.Load())
}

func TestLatest_FromStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := cache.NewRedisCacheFromClient(client)

	first := New(&staticSource{rows: rows}, echoExtractor{}, nil, nil, WithStore(store))
	res, err := first.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.EvaluationKey))

	restarted := New(&staticSource{rows: rows}, echoExtractor{}, nil, nil, WithStore(store))
	got, err := restarted.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Metrics, got.Metrics)
	assert.Equal(t, res.Failures, got.Failures)
	assert.True(t, res.ComputedAt.Equal(got.ComputedAt))
}
