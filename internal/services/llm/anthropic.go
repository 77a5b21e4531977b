package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"news-reader/internal/config"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const jsonSystemPrompt = `You extract structured information. Reply with a single JSON object that conforms to this JSON schema, with no other text:
%s`

type AnthropicClient struct {
	client   anthropic.Client
	defaults GenerateOptions
}

func NewAnthropicClient(cfg config.LLMConfig, httpClient *http.Client) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &AnthropicClient{
		client:   anthropic.NewClient(opts...),
		defaults: optionsFromConfig(cfg),
	}, nil
}

func (c *AnthropicClient) GenerateText(ctx context.Context, prompt string, opts ...Option) (string, error) {
	return c.complete(ctx, "", prompt, resolveOptions(c.defaults, opts))
}

func (c *AnthropicClient) GenerateJSON(ctx context.Context, prompt string, schema *Schema, opts ...Option) (string, error) {
	system := fmt.Sprintf(jsonSystemPrompt, schema.JSON())
	content, err := c.complete(ctx, system, prompt, resolveOptions(c.defaults, opts))
	if err != nil {
		return "", err
	}
	return cleanJSONResponse(content), nil
}

func (c *AnthropicClient) complete(ctx context.Context, system, prompt string, o GenerateOptions) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(o.Model),
		MaxTokens:   int64(o.MaxCompletionTokens),
		Temperature: anthropic.Float(o.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		sb.WriteString(block.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}
	return sb.String(), nil
}
