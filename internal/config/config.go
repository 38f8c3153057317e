package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"story-quest"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Gemini    Gemini
	Audio     Audio
	Session   Session
	Redis     Redis
	RateLimit RateLimit
	UI        UI
}

// Gemini configures the content generation service.
type Gemini struct {
	APIKey              string        `env:"GEMINI_API_KEY,notEmpty"`
	BaseURL             string        `env:"GEMINI_BASE_URL" envDefault:""`
	TextModel           string        `env:"GEMINI_TEXT_MODEL" envDefault:"gemini-3-flash-preview"`
	ImageModel          string        `env:"GEMINI_IMAGE_MODEL" envDefault:"gemini-2.5-flash-image"`
	SpeechModel         string        `env:"GEMINI_SPEECH_MODEL" envDefault:"gemini-2.5-pro-tts"`
	Voice               string        `env:"GEMINI_VOICE" envDefault:"Kore"`
	Timeout             time.Duration `env:"GEMINI_TIMEOUT" envDefault:"60s"`
	NarrationRetryDelay time.Duration `env:"NARRATION_RETRY_DELAY" envDefault:"2s"`
	NarrationMaxRetries uint64        `env:"NARRATION_MAX_RETRIES" envDefault:"1"`
}

// Audio describes the PCM the speech model returns.
type Audio struct {
	SampleRate int `env:"AUDIO_SAMPLE_RATE" envDefault:"24000"`
	Channels   int `env:"AUDIO_CHANNELS" envDefault:"1"`
}

// Session controls game session lifetime and the session cookie.
type Session struct {
	Secret        string        `env:"SESSION_SECRET,notEmpty"`
	TTL           time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	CookieName    string        `env:"SESSION_COOKIE_NAME" envDefault:"storyquest_session"`
	CookieSecure  bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
}

// Redis is optional; when Addr is empty sessions stay in memory.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// RateLimit bounds requests per client address.
type RateLimit struct {
	RPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	Burst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`
	// TrustedProxies lists the addresses or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are believed.
	TrustedProxies []string `env:"RATE_LIMIT_TRUSTED_PROXIES" envSeparator:"," envDefault:""`
}

// UI holds presentation timings.
type UI struct {
	HintDuration        time.Duration `env:"UI_HINT_DURATION" envDefault:"3s"`
	Level2HintDuration  time.Duration `env:"UI_LEVEL2_HINT_DURATION" envDefault:"4s"`
	ErrorDuration       time.Duration `env:"UI_ERROR_DURATION" envDefault:"3s"`
	Level2ErrorDuration time.Duration `env:"UI_LEVEL2_ERROR_DURATION" envDefault:"4s"`
	ToastDuration       time.Duration `env:"UI_TOAST_DURATION" envDefault:"3s"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst <= 0 {
		return nil, fmt.Errorf("parse config: rate limit must be positive")
	}
	return cfg, nil
}
