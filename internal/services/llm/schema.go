package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
)

// Schema is the target shape of a structured generation call.
type Schema struct {
	Name        string
	Description string
	Definition  *jsonschema.Schema
}

// JSON renders the schema definition.
func (s *Schema) JSON() string {
	b, err := json.Marshal(s.Definition)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Validator is implemented by outputs with constraints beyond the schema.
type Validator interface {
	Validate() error
}

var schemaCache sync.Map // reflect.Type -> *Schema

// SchemaFor reflects the strict JSON schema of T from its struct tags.
func SchemaFor[T any]() *Schema {
	var zero T
	typ := reflect.TypeOf(zero)
	if cached, ok := schemaCache.Load(typ); ok {
		return cached.(*Schema)
	}

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	def := reflector.Reflect(zero)
	def.Version = ""
	def.ID = ""

	schema := &Schema{
		Name:        typ.Name(),
		Description: def.Description,
		Definition:  def,
	}
	actual, _ := schemaCache.LoadOrStore(typ, schema)
	return actual.(*Schema)
}

// GenerateObject asks g for an instance of T and validates it.
func GenerateObject[T any](ctx context.Context, g Generator, prompt string, opts ...Option) (*T, error) {
	schema := SchemaFor[T]()
	raw, err := g.GenerateJSON(ctx, prompt, schema, opts...)
	if err != nil {
		return nil, err
	}
	return DecodeObject[T](raw)
}

// ObjectResult carries the outcome of GenerateObjectAsync.
type ObjectResult[T any] struct {
	Value *T
	Err   error
}

// GenerateObjectAsync runs GenerateObject in its own goroutine. The returned
// channel yields exactly one result and is then closed.
func GenerateObjectAsync[T any](ctx context.Context, g Generator, prompt string, opts ...Option) <-chan ObjectResult[T] {
	out := make(chan ObjectResult[T], 1)
	go func() {
		defer close(out)
		v, err := GenerateObject[T](ctx, g, prompt, opts...)
		out <- ObjectResult[T]{Value: v, Err: err}
	}()
	return out
}

// DecodeObject parses raw model output into T. Unknown fields, missing
// required fields and failed Validate calls are schema validation errors.
func DecodeObject[T any](raw string) (*T, error) {
	schema := SchemaFor[T]()
	content := cleanJSONResponse(raw)
	if content == "" {
		return nil, fmt.Errorf("%w: %s: %w", ErrSchemaValidation, schema.Name, ErrEmptyResponse)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSchemaValidation, schema.Name, err)
	}
	for _, name := range schema.Definition.Required {
		if _, ok := fields[name]; !ok {
			return nil, fmt.Errorf("%w: %s: missing field %q", ErrSchemaValidation, schema.Name, name)
		}
	}

	var out T
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSchemaValidation, schema.Name, err)
	}

	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSchemaValidation, schema.Name, err)
		}
	}
	return &out, nil
}

// cleanJSONResponse strips markdown fences and any prose around the outer
// JSON object.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
