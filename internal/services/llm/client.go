package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"news-reader/internal/config"
)

var (
	ErrEmptyResponse    = errors.New("llm: empty response")
	ErrSchemaValidation = errors.New("llm: output does not match schema")
	ErrUnknownProvider  = errors.New("llm: unknown provider")
)

// Generator is the structured generation collaborator. Implementations call a
// hosted completion API; they never retry.
type Generator interface {
	// GenerateText returns the free-text completion for prompt.
	GenerateText(ctx context.Context, prompt string, opts ...Option) (string, error)

	// GenerateJSON returns a completion constrained to schema, as raw JSON.
	GenerateJSON(ctx context.Context, prompt string, schema *Schema, opts ...Option) (string, error)
}

// GenerateOptions are the per-call generation settings.
type GenerateOptions struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int
}

type Option func(*GenerateOptions)

func WithModel(model string) Option {
	return func(o *GenerateOptions) { o.Model = model }
}

func WithTemperature(t float64) Option {
	return func(o *GenerateOptions) { o.Temperature = t }
}

func WithMaxCompletionTokens(n int) Option {
	return func(o *GenerateOptions) { o.MaxCompletionTokens = n }
}

// DefaultOptions mirrors the generation config every call starts from.
func DefaultOptions() GenerateOptions {
	return GenerateOptions{
		Model:               "o3-mini",
		Temperature:         1,
		MaxCompletionTokens: 4096,
	}
}

func resolveOptions(base GenerateOptions, opts []Option) GenerateOptions {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

func optionsFromConfig(cfg config.LLMConfig) GenerateOptions {
	o := DefaultOptions()
	if cfg.Model != "" {
		o.Model = cfg.Model
	}
	o.Temperature = cfg.Temperature
	if cfg.MaxCompletionTokens > 0 {
		o.MaxCompletionTokens = cfg.MaxCompletionTokens
	}
	return o
}

// New creates the hosted client selected by cfg.Provider. The mock provider
// is built with NewMockClient since it needs canned answers.
func New(cfg config.LLMConfig, httpClient *http.Client) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderAzure:
		return NewAzureOpenAIClient(cfg, httpClient)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, httpClient)
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg, httpClient)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
