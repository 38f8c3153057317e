package generation

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/genai"
)

// Schema is the output contract of one structured generation call: the
// Gemini response schema sent with the request and the resolved JSON schema
// used to check what comes back.
type Schema[T any] struct {
	gemini   *genai.Schema
	resolved *jsonschema.Resolved
}

// NewSchema infers the schema of T from its struct tags. adjust may tighten
// the inferred schema (bounds, enums) before it is resolved.
func NewSchema[T any](adjust func(*jsonschema.Schema)) (*Schema[T], error) {
	js, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("infer schema: %w", err)
	}
	// models occasionally add fields; only the declared ones matter
	js.AdditionalProperties = nil
	if adjust != nil {
		adjust(js)
	}

	resolved, err := js.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}

	return &Schema[T]{
		gemini:   toGeminiSchema(js),
		resolved: resolved,
	}, nil
}

// Gemini returns the schema in the form the API expects.
func (s *Schema[T]) Gemini() *genai.Schema {
	return s.gemini
}

// Validate checks a decoded JSON value against the schema.
func (s *Schema[T]) Validate(instance any) error {
	return s.resolved.Validate(instance)
}

func toGeminiSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}

	gs := &genai.Schema{
		Format:           schema.Format,
		Description:      schema.Description,
		Enum:             enums,
		Items:            toGeminiSchema(schema.Items),
		Required:         schema.Required,
		Minimum:          schema.Minimum,
		Maximum:          schema.Maximum,
		PropertyOrdering: schema.PropertyOrder,
	}
	if len(gs.Enum) == 0 {
		gs.Enum = nil
	}

	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for name, prop := range schema.Properties {
			gs.Properties[name] = toGeminiSchema(prop)
		}
	}

	typ := schema.Type
	if typ == "" {
		for _, t := range schema.Types {
			if t != "null" {
				typ = t
				break
			}
		}
	}
	switch typ {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return gs
}

func scoreBounds(fields ...string) func(*jsonschema.Schema) {
	return func(s *jsonschema.Schema) {
		for _, f := range fields {
			if prop, ok := s.Properties[f]; ok {
				prop.Minimum = jsonschema.Ptr(0.0)
				prop.Maximum = jsonschema.Ptr(100.0)
			}
		}
	}
}
