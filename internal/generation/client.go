package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const (
	DefaultTextModel   = "gemini-3-flash-preview"
	DefaultImageModel  = "gemini-2.5-flash-image"
	DefaultSpeechModel = "gemini-2.5-pro-tts"
	DefaultVoice       = "Kore"
)

// ContentGenerator is the slice of the Gemini SDK the client depends on.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config holds model selection and call policy for the Gemini client.
type Config struct {
	APIKey      string
	BaseURL     string
	TextModel   string
	ImageModel  string
	SpeechModel string
	Voice       string
	Timeout     time.Duration

	NarrationRetryDelay time.Duration
	NarrationMaxRetries uint64
}

func (c Config) withDefaults() Config {
	if c.TextModel == "" {
		c.TextModel = DefaultTextModel
	}
	if c.ImageModel == "" {
		c.ImageModel = DefaultImageModel
	}
	if c.SpeechModel == "" {
		c.SpeechModel = DefaultSpeechModel
	}
	if c.Voice == "" {
		c.Voice = DefaultVoice
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.NarrationRetryDelay <= 0 {
		c.NarrationRetryDelay = 2 * time.Second
	}
	if c.NarrationMaxRetries == 0 {
		c.NarrationMaxRetries = 1
	}
	return c
}

// Client issues the three kinds of generation requests the game needs.
type Client struct {
	models   ContentGenerator
	cfg      Config
	logger   zerolog.Logger
	validate *validator.Validate

	level1  *Schema[Level1Content]
	level2  *Schema[Level2Content]
	ability *Schema[AbilityReport]
}

// NewClient connects to the Gemini API with the configured key.
func NewClient(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key not configured")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return New(gc.Models, cfg, logger)
}

// New wraps an existing content generator.
func New(models ContentGenerator, cfg Config, logger zerolog.Logger) (*Client, error) {
	level1, err := NewSchema[Level1Content](nil)
	if err != nil {
		return nil, fmt.Errorf("level 1 schema: %w", err)
	}
	level2, err := NewSchema[Level2Content](nil)
	if err != nil {
		return nil, fmt.Errorf("level 2 schema: %w", err)
	}
	ability, err := NewSchema[AbilityReport](scoreBounds("mastery", "logic"))
	if err != nil {
		return nil, fmt.Errorf("ability schema: %w", err)
	}

	return &Client{
		models:   models,
		cfg:      cfg.withDefaults(),
		logger:   logger.With().Str("component", "gemini_client").Logger(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		level1:   level1,
		level2:   level2,
		ability:  ability,
	}, nil
}

// GenerateLevel1 turns the child's question into the first chapter.
func (c *Client) GenerateLevel1(ctx context.Context, question string) (Level1Content, error) {
	return GenerateStructured(ctx, c, Level1Prompt(question), c.level1)
}

// GenerateLevel2 builds the follow-up chapter at the chosen difficulty.
func (c *Client) GenerateLevel2(ctx context.Context, l1Story, l1Question, difficulty string) (Level2Content, error) {
	return GenerateStructured(ctx, c, Level2Prompt(l1Story, l1Question, difficulty), c.level2)
}

// GenerateAbilityReport scores the finished adventure.
func (c *Client) GenerateAbilityReport(ctx context.Context, initialQuestion string, attempts int, difficulty string) (AbilityReport, error) {
	return GenerateStructured(ctx, c, AbilityPrompt(initialQuestion, attempts, difficulty), c.ability)
}

func (c *Client) generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	return c.models.GenerateContent(ctx, model, contents, config)
}

// firstInlineData returns the first inline payload of the first candidate.
func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return nil
	}
	for _, part := range cand.Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData
		}
	}
	return nil
}
