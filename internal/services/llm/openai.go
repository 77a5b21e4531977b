package llm

import (
	"context"
	"fmt"
	"net/http"

	"news-reader/internal/config"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/azure"
	"github.com/openai/openai-go/v2/option"
)

type OpenAIClient struct {
	client   openai.Client
	defaults GenerateOptions
}

// NewOpenAIClient creates a client for the public OpenAI API. cfg.Endpoint,
// when set, overrides the base URL.
func NewOpenAIClient(cfg config.LLMConfig, httpClient *http.Client) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	return newOpenAIClient(cfg, httpClient, opts), nil
}

// NewAzureOpenAIClient creates a client for an Azure OpenAI deployment. The
// configured model is the deployment name.
func NewAzureOpenAIClient(cfg config.LLMConfig, httpClient *http.Client) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Azure OpenAI API key is required")
	}
	if cfg.Endpoint == "" || cfg.APIVersion == "" {
		return nil, fmt.Errorf("Azure OpenAI endpoint and API version are required")
	}

	opts := []option.RequestOption{
		azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
		azure.WithAPIKey(cfg.APIKey),
	}
	return newOpenAIClient(cfg, httpClient, opts), nil
}

func newOpenAIClient(cfg config.LLMConfig, httpClient *http.Client, opts []option.RequestOption) *OpenAIClient {
	opts = append(opts, option.WithMaxRetries(0))
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAIClient{
		client:   openai.NewClient(opts...),
		defaults: optionsFromConfig(cfg),
	}
}

func (c *OpenAIClient) GenerateText(ctx context.Context, prompt string, opts ...Option) (string, error) {
	o := resolveOptions(c.defaults, opts)
	return c.complete(ctx, c.params(prompt, o))
}

func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt string, schema *Schema, opts ...Option) (string, error) {
	o := resolveOptions(c.defaults, opts)

	params := c.params(prompt, o)
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:   schema.Name,
		Schema: schema.Definition,
		Strict: openai.Bool(true),
	}
	if schema.Description != "" {
		schemaParam.Description = openai.String(schema.Description)
	}
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
	}
	return c.complete(ctx, params)
}

func (c *OpenAIClient) params(prompt string, o GenerateOptions) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature:         openai.Float(o.Temperature),
		MaxCompletionTokens: openai.Int(int64(o.MaxCompletionTokens)),
	}
}

func (c *OpenAIClient) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
