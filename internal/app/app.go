package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/story-quest/internal/audio"
	"github.com/gokatarajesh/story-quest/internal/config"
	"github.com/gokatarajesh/story-quest/internal/game"
	"github.com/gokatarajesh/story-quest/internal/generation"
	"github.com/gokatarajesh/story-quest/internal/logging"
	"github.com/gokatarajesh/story-quest/internal/server"
	"github.com/gokatarajesh/story-quest/internal/session"
	"github.com/gokatarajesh/story-quest/internal/views"
	ws "github.com/gokatarajesh/story-quest/pkg/http/ws"
)

// Application aggregates shared infrastructure (session store, generation
// client, orchestrator, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	redis        *redis.Client
	http         *http.Server
	hub          *ws.Hub
	orchestrator *game.Orchestrator

	sweeper   *session.Sweeper
	bgCancels []context.CancelFunc
}

// New bootstraps logger, session store, Gemini client and HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Msg("starting application bootstrap")

	format := audio.Format{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("audio format: %w", err)
	}

	var (
		redisClient *redis.Client
		store       session.Store
		pruners     []session.Pruner
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		store = session.NewRedisStore(redisClient, cfg.Session.TTL)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("sessions stored in redis")
	} else {
		mem := session.NewMemoryStore(cfg.Session.TTL)
		store = mem
		pruners = append(pruners, mem)
		if err := prometheus.Register(session.MemoryGauge(mem)); err != nil {
			logger.Warn().Err(err).Msg("session gauge not registered")
		}
		logger.Warn().Msg("REDIS_ADDR not set; sessions kept in memory")
	}

	generator, err := generation.NewClient(ctx, generation.Config{
		APIKey:              cfg.Gemini.APIKey,
		BaseURL:             cfg.Gemini.BaseURL,
		TextModel:           cfg.Gemini.TextModel,
		ImageModel:          cfg.Gemini.ImageModel,
		SpeechModel:         cfg.Gemini.SpeechModel,
		Voice:               cfg.Gemini.Voice,
		Timeout:             cfg.Gemini.Timeout,
		NarrationRetryDelay: cfg.Gemini.NarrationRetryDelay,
		NarrationMaxRetries: cfg.Gemini.NarrationMaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	wsHub := ws.NewHub(logger)
	orchestrator := game.NewOrchestrator(store, generator, server.NewHubNotifier(wsHub, logger), game.Config{
		AudioFormat: format,
		IdleTTL:     cfg.Session.TTL,
	}, logger)

	renderer, err := views.New()
	if err != nil {
		return nil, err
	}

	trusted, err := server.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	limiter := server.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.Session.SweepInterval, trusted)
	pruners = append(pruners, orchestrator, limiter)

	tokens := session.NewTokenManager(session.TokenConfig{
		Secret: []byte(cfg.Session.Secret),
		TTL:    cfg.Session.TTL,
		Issuer: cfg.Name,
	})

	apiServer := server.NewHTTPServer(cfg, logger, server.Deps{
		Game:     orchestrator,
		Tokens:   tokens,
		Renderer: renderer,
		Hub:      wsHub,
		Limiter:  limiter,
		Redis:    redisClient,
		Timings: views.Timings{
			Hint:        cfg.UI.HintDuration,
			Level2Hint:  cfg.UI.Level2HintDuration,
			Error:       cfg.UI.ErrorDuration,
			Level2Error: cfg.UI.Level2ErrorDuration,
			Toast:       cfg.UI.ToastDuration,
		},
	})

	var sweeper *session.Sweeper
	if interval := cfg.Session.SweepInterval; interval > 0 {
		sweeper = session.NewSweeper(interval, logger, pruners...)
	}

	return &Application{
		cfg:          cfg,
		logger:       logger,
		redis:        redisClient,
		http:         apiServer,
		hub:          wsHub,
		orchestrator: orchestrator,
		sweeper:      sweeper,
		bgCancels:    make([]context.CancelFunc, 0, 1),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		a.shutdown()
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	a.shutdown()
	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	a.hub.CloseAll()
	a.orchestrator.Close()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.sweeper != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.sweeper.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Msg("session sweeper stopped")
			}
		}()
	}
}
