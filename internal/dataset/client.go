package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"news-reader/internal/cache"
	"news-reader/internal/config"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	pageSize        = 100
	maxPageRequests = 4
	defaultSplit    = "train"
	// Seed of the balanced business/non-business sample.
	bbcSampleSeed = 42
)

// Cache is the subset of the Redis cache used to keep downloaded records.
type Cache interface {
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() (any, error)) ([]byte, error)
}

// Client reads dataset rows from a Hugging Face datasets-server.
type Client struct {
	baseURL    string
	dataset    string
	split      string
	httpClient *http.Client
	cache      Cache
	logger     zerolog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

func WithCache(c Cache) ClientOption {
	return func(cl *Client) { cl.cache = c }
}

func WithLogger(l zerolog.Logger) ClientOption {
	return func(cl *Client) { cl.logger = l }
}

func NewClient(cfg config.DatasetConfig, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.ServerURL, "/"),
		dataset:    cfg.Name,
		split:      defaultSplit,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rowsResponse struct {
	Rows []struct {
		RowIdx int    `json:"row_idx"`
		Row    Record `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

// FetchRecords downloads every record of the dataset config. The first page
// is read alone to learn the row count; the rest are fetched concurrently.
func (c *Client) FetchRecords(ctx context.Context, configName string) ([]Record, error) {
	if c.cache == nil {
		return c.download(ctx, configName)
	}

	data, err := c.cache.GetOrSet(ctx, cache.DatasetKey(c.dataset, configName, c.split), cache.DatasetTTL, func() (any, error) {
		return c.download(ctx, configName)
	})
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode cached dataset: %w", err)
	}
	return records, nil
}

func (c *Client) download(ctx context.Context, configName string) ([]Record, error) {
	first, err := c.fetchPage(ctx, configName, 0)
	if err != nil {
		return nil, err
	}

	total := first.NumRowsTotal
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}

	results := make([][]Record, pages)
	results[0] = pageRecords(first)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPageRequests)
	for p := 1; p < pages; p++ {
		p := p
		g.Go(func() error {
			resp, err := c.fetchPage(gctx, configName, p*pageSize)
			if err != nil {
				return err
			}
			results[p] = pageRecords(resp)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]Record, 0, total)
	for _, page := range results {
		records = append(records, page...)
	}

	c.logger.Info().
		Str("dataset", c.dataset).
		Str("config", configName).
		Int("records", len(records)).
		Msg("Dataset downloaded")
	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, configName string, offset int) (*rowsResponse, error) {
	q := url.Values{}
	q.Set("dataset", c.dataset)
	q.Set("config", configName)
	q.Set("split", c.split)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rows?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rows at offset %d: %w", offset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("datasets server returned %d at offset %d: %s", resp.StatusCode, offset, strings.TrimSpace(string(body)))
	}

	var out rowsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode rows at offset %d: %w", offset, err)
	}
	return &out, nil
}

func pageRecords(resp *rowsResponse) []Record {
	out := make([]Record, len(resp.Rows))
	for i, r := range resp.Rows {
		out[i] = r.Row
	}
	return out
}

// Source yields the evaluation rows.
type Source interface {
	Rows(ctx context.Context) ([]Row, error)
}

// FileSource reads rows from a local file or directory.
type FileSource struct {
	Path string
}

func (s FileSource) Rows(context.Context) ([]Row, error) {
	return Load(s.Path)
}

// HubSource downloads the BBC dataset and takes the evaluation sample.
type HubSource struct {
	Client   *Client
	Config   string
	PerClass int
	Seed     int64
}

func (s HubSource) Rows(ctx context.Context) ([]Row, error) {
	records, err := s.Client.FetchRecords(ctx, s.Config)
	if err != nil {
		return nil, err
	}
	return EvaluationSample(BBCSample(records, bbcSampleSeed), s.PerClass, s.Seed), nil
}

// NewSource picks a FileSource when cfg.File is set, a HubSource otherwise.
// An empty cfg.Config selects the month 360 days before now.
func NewSource(cfg config.DatasetConfig, now time.Time, opts ...ClientOption) Source {
	if cfg.File != "" {
		return FileSource{Path: cfg.File}
	}
	configName := cfg.Config
	if configName == "" {
		configName = DefaultConfig(now)
	}
	return HubSource{
		Client:   NewClient(cfg, opts...),
		Config:   configName,
		PerClass: cfg.SamplePerClass,
		Seed:     cfg.Seed,
	}
}
