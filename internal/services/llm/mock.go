package llm

import (
	"context"
	"fmt"
	"sync"
)

// Call is one request seen by MockClient.
type Call struct {
	Prompt string
	Schema string
	Opts   GenerateOptions
}

// MockClient answers from canned JSON keyed by schema name. It is
// deterministic and safe for concurrent use.
type MockClient struct {
	Text      string
	Responses map[string]string

	mu    sync.Mutex
	calls []Call
}

func NewMockClient(responses map[string]string) *MockClient {
	return &MockClient{Responses: responses}
}

func (m *MockClient) GenerateText(ctx context.Context, prompt string, opts ...Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.record(prompt, "", opts)
	if m.Text == "" {
		return "", fmt.Errorf("mock: %w", ErrEmptyResponse)
	}
	return m.Text, nil
}

func (m *MockClient) GenerateJSON(ctx context.Context, prompt string, schema *Schema, opts ...Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.record(prompt, schema.Name, opts)
	resp, ok := m.Responses[schema.Name]
	if !ok {
		return "", fmt.Errorf("mock: no response for %s: %w", schema.Name, ErrEmptyResponse)
	}
	return resp, nil
}

// Calls returns a copy of the recorded requests in arrival order.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockClient) record(prompt, schema string, opts []Option) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{
		Prompt: prompt,
		Schema: schema,
		Opts:   resolveOptions(DefaultOptions(), opts),
	})
}
