package oracle

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Shape is a named, lazily resolved JSON schema describing a stage response.
type Shape struct {
	Name   string
	Schema *jsonschema.Schema

	once     sync.Once
	resolved *jsonschema.Resolved
	err      error
}

// NewShape declares a response shape.
func NewShape(name string, schema *jsonschema.Schema) *Shape {
	return &Shape{Name: name, Schema: schema}
}

func (s *Shape) resolve() (*jsonschema.Resolved, error) {
	s.once.Do(func() {
		if s.Schema == nil {
			s.err = fmt.Errorf("oracle: shape %s has no schema", s.Name)
			return
		}
		s.resolved, s.err = s.Schema.Resolve(nil)
	})
	return s.resolved, s.err
}

// Decode validates raw against the shape and unmarshals it into out. Any
// mismatch is reported as a validation *Error; payloads are never repaired.
func (s *Shape) Decode(stage string, raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return Validation(stage, fmt.Errorf("empty payload"))
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return Validation(stage, fmt.Errorf("payload is not JSON: %w", err))
	}
	resolved, err := s.resolve()
	if err != nil {
		return Validation(stage, err)
	}
	if err := resolved.Validate(instance); err != nil {
		return Validation(stage, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return Validation(stage, fmt.Errorf("decode %s: %w", s.Name, err))
	}
	return nil
}

// IsArray reports whether the top-level shape is a JSON array.
func (s *Shape) IsArray() bool {
	return s != nil && s.Schema != nil && s.Schema.Type == "array"
}

// Schema builders keep stage declarations compact.

// Object declares an object whose listed properties are all required.
func Object(props map[string]*jsonschema.Schema) *jsonschema.Schema {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	sort.Strings(required)
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

// Number declares a finite number.
func Number() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number"}
}

// Score declares a number bounded to 0–100.
func Score() *jsonschema.Schema {
	lo, hi := 0.0, 100.0
	return &jsonschema.Schema{Type: "number", Minimum: &lo, Maximum: &hi}
}

// String declares a string.
func String() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string"}
}

// Enum declares a string restricted to values.
func Enum[T ~string](values ...T) *jsonschema.Schema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = string(v)
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

// Array declares a list of items.
func Array(items *jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: items}
}
