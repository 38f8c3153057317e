package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ErrStructuredContent marks any failure of a structured generation call.
// Callers treat it as load-bearing: the game cannot advance without the text.
var ErrStructuredContent = errors.New("structured content generation failed")

// GenerateStructured sends prompt with schema attached and returns the
// response decoded into T. The response must conform to the schema and pass
// T's validate tags.
func GenerateStructured[T any](ctx context.Context, c *Client, prompt string, schema *Schema[T]) (T, error) {
	var zero T
	start := time.Now()

	resp, err := c.generate(ctx, c.cfg.TextModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema.Gemini(),
	})
	if err != nil {
		observe(kindText, outcomeError, start)
		return zero, fmt.Errorf("%w: %w", ErrStructuredContent, err)
	}

	var text string
	if resp != nil {
		text = resp.Text()
	}

	out, err := decodeStructured(text, schema, c)
	if err != nil {
		observe(kindText, outcomeInvalid, start)
		c.logger.Warn().Err(err).Str("model", c.cfg.TextModel).Msg("model response rejected")
		return zero, fmt.Errorf("%w: %w", ErrStructuredContent, err)
	}

	observe(kindText, outcomeOK, start)
	return out, nil
}

func decodeStructured[T any](text string, schema *Schema[T], c *Client) (T, error) {
	var zero T
	text = stripCodeFence(text)
	if text == "" {
		return zero, errors.New("empty response")
	}

	var instance any
	if err := json.Unmarshal([]byte(text), &instance); err != nil {
		return zero, fmt.Errorf("parse response: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return zero, fmt.Errorf("response does not match schema: %w", err)
	}

	var out T
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return zero, fmt.Errorf("decode response: %w", err)
	}
	if err := c.validate.Struct(out); err != nil {
		return zero, fmt.Errorf("validate response: %w", err)
	}
	return out, nil
}

// stripCodeFence removes a markdown ```json fence some models wrap around
// JSON even in JSON mode.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
