package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).With().Str("request_id", "r1").Logger()

	fromCtx := FromContext(IntoContext(context.Background(), logger))
	fromCtx.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"request_id":"r1"`)
}

func TestFromContextWithoutLogger(t *testing.T) {
	logger := FromContext(context.Background())
	assert.Equal(t, zerolog.Disabled, logger.GetLevel())
}

func TestNewLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, New("app", "test", "debug").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("app", "test", "loud").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("app", "test", "").GetLevel())
}
