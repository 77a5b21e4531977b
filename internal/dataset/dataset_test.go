package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"news-reader/internal/cache"
	"news-reader/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRow(t *testing.T) {
	row := Record{
		Title:       "Shares jump",
		Description: "Markets rallied.",
		Section:     "Business",
		Content:     "First.\n\nSecond.\nThird.",
	}.Row()

	assert.Equal(t, "Shares jump\n\nFirst.\nSecond.\nThird.", row.Article)
	assert.True(t, row.IsBusiness)
	assert.Equal(t, "Markets rallied.", row.Description)
	assert.Equal(t, "Shares jump", row.Title)
}

func TestDefaultConfig(t *testing.T) {
	now := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03", DefaultConfig(now))
}

func records(business, other int) []Record {
	var out []Record
	for i := 0; i < business; i++ {
		out = append(out, Record{Title: "b" + strconv.Itoa(i), Section: "Business"})
	}
	for i := 0; i < other; i++ {
		out = append(out, Record{Title: "o" + strconv.Itoa(i), Section: "World"})
	}
	return out
}

func TestBBCSample_Balanced(t *testing.T) {
	recs := records(3, 10)
	recs = append(recs, Record{Title: "b0", Section: "World"})

	rows := BBCSample(recs, 42)
	require.Len(t, rows, 6)

	business := 0
	titles := map[string]bool{}
	for i, row := range rows {
		if row.IsBusiness {
			business++
			assert.GreaterOrEqual(t, i, 3)
		}
		assert.False(t, titles[row.Title], "duplicate %s", row.Title)
		titles[row.Title] = true
	}
	assert.Equal(t, 3, business)
	assert.Equal(t, rows, BBCSample(recs, 42))
}

func TestEvaluationSample(t *testing.T) {
	rows := BBCSample(records(8, 8), 42)

	sample := EvaluationSample(rows, 5, 31)
	require.Len(t, sample, 10)
	for i, row := range sample {
		assert.Equal(t, i >= 5, row.IsBusiness)
	}
	assert.Equal(t, sample, EvaluationSample(rows, 5, 31))

	small := EvaluationSample(rows[:2], 5, 31)
	assert.Len(t, small, 2)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	want := []Row{
		{Article: "a1", IsBusiness: true, Description: "d1", Title: "t1"},
		{Article: "a2", IsBusiness: false, Description: "d2", Title: "t2"},
	}

	jsonl := writeFile(t, dir, "rows.jsonl", `{"article":"a1","is_business":true,"description":"d1","title":"t1"}

{"article":"a2","is_business":false,"description":"d2","title":"t2"}
`)
	raw, err := json.Marshal(want)
	require.NoError(t, err)
	jsonFile := writeFile(t, dir, "rows.json", string(raw))
	csvFile := writeFile(t, dir, "rows.csv", "title,article,is_business,description\nt1,a1,true,d1\nt2,a2,False,d2\n")

	for _, path := range []string{jsonl, jsonFile, csvFile} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			got, err := LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(writeFile(t, dir, "rows.txt", ""))
	assert.Error(t, err)

	_, err = LoadFile(writeFile(t, dir, "bad.csv", "title,article\nt,a\n"))
	assert.ErrorContains(t, err, "is_business")

	_, err = LoadFile(writeFile(t, dir, "bad.jsonl", "{\n"))
	assert.ErrorContains(t, err, "line 1")

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl", `{"article":"a","title":"t"}`+"\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	writeFile(t, filepath.Join(dir, "nested"), "b.json", `[{"article":"b","title":"t"}]`)
	writeFile(t, dir, "notes.md", "ignored")

	rows, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Article)
	assert.Equal(t, "b", rows[1].Article)

	rows, err = FileSource{Path: filepath.Join(dir, "a.jsonl")}.Rows(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// newHubServer serves total BBC records, three quarters of them World news.
func newHubServer(t *testing.T, total int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/rows", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "RealTimeData/bbc_news_alltime", q.Get("dataset"))
		assert.Equal(t, "2024-03", q.Get("config"))
		assert.Equal(t, "train", q.Get("split"))
		assert.Equal(t, "100", q.Get("length"))

		offset, _ := strconv.Atoi(q.Get("offset"))
		type item struct {
			RowIdx int    `json:"row_idx"`
			Row    Record `json:"row"`
		}
		var items []item
		for i := offset; i < offset+100 && i < total; i++ {
			section := "World"
			if i%4 == 0 {
				section = "Business"
			}
			items = append(items, item{RowIdx: i, Row: Record{Title: fmt.Sprintf("title %d", i), Section: section}})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"rows": items, "num_rows_total": total})
	}))
}

func TestClient_FetchRecordsPagesInOrder(t *testing.T) {
	var hits atomic.Int32
	srv := newHubServer(t, 250, &hits)
	defer srv.Close()

	client := NewClient(config.DatasetConfig{Name: "RealTimeData/bbc_news_alltime", ServerURL: srv.URL + "/"}, WithHTTPClient(srv.Client()))
	recs, err := client.FetchRecords(context.Background(), "2024-03")
	require.NoError(t, err)
	require.Len(t, recs, 250)
	for i, rec := range recs {
		assert.Equal(t, fmt.Sprintf("title %d", i), rec.Title)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(config.DatasetConfig{Name: "d", ServerURL: srv.URL})
	_, err := client.FetchRecords(context.Background(), "2024-03")
	assert.ErrorContains(t, err, "503")
}

func TestClient_CachesRecords(t *testing.T) {
	var hits atomic.Int32
	srv := newHubServer(t, 40, &hits)
	defer srv.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	client := NewClient(
		config.DatasetConfig{Name: "RealTimeData/bbc_news_alltime", ServerURL: srv.URL},
		WithCache(cache.NewRedisCacheFromClient(rdb)),
	)

	first, err := client.FetchRecords(context.Background(), "2024-03")
	require.NoError(t, err)
	second, err := client.FetchRecords(context.Background(), "2024-03")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
	assert.True(t, mr.Exists(cache.DatasetKey("RealTimeData/bbc_news_alltime", "2024-03", "train")))
}

func TestClient_DownloadsWhenCacheUnreachable(t *testing.T) {
	var hits atomic.Int32
	srv := newHubServer(t, 40, &hits)
	defer srv.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	mr.Close()

	client := NewClient(
		config.DatasetConfig{Name: "RealTimeData/bbc_news_alltime", ServerURL: srv.URL},
		WithCache(cache.NewRedisCacheFromClient(rdb)),
	)

	records, err := client.FetchRecords(context.Background(), "2024-03")
	require.NoError(t, err)
	assert.Len(t, records, 40)
	assert.Equal(t, int32(1), hits.Load())
}

func TestNewSource(t *testing.T) {
	now := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

	src := NewSource(config.DatasetConfig{File: "rows.jsonl"}, now)
	assert.Equal(t, FileSource{Path: "rows.jsonl"}, src)

	var hits atomic.Int32
	srv := newHubServer(t, 40, &hits)
	defer srv.Close()

	hub := NewSource(config.DatasetConfig{
		Name:           "RealTimeData/bbc_news_alltime",
		ServerURL:      srv.URL,
		SamplePerClass: 5,
		Seed:           31,
	}, now)
	require.IsType(t, HubSource{}, hub)
	assert.Equal(t, "2024-03", hub.(HubSource).Config)

	rows, err := hub.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 10)
	assert.False(t, rows[0].IsBusiness)
	assert.True(t, rows[9].IsBusiness)
}
