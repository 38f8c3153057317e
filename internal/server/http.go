package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/story-quest/internal/audio"
	"github.com/gokatarajesh/story-quest/internal/config"
	"github.com/gokatarajesh/story-quest/internal/game"
	"github.com/gokatarajesh/story-quest/internal/session"
	"github.com/gokatarajesh/story-quest/internal/views"
	ws "github.com/gokatarajesh/story-quest/pkg/http/ws"
)

// WSUpgrader handles WebSocket upgrades for the narration channel.
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the configured public origin once one exists in config.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Game is the part of the orchestrator the HTTP layer drives.
type Game interface {
	session.Resolver
	Snapshot(ctx context.Context, id string) (game.Snapshot, error)
	Dispatch(ctx context.Context, id string, ev game.Event) (game.Snapshot, error)
	Clip(id string) (*audio.Playback, bool)
}

var _ Game = (*game.Orchestrator)(nil)

// Deps are the collaborators of the HTTP server. Redis may be nil when
// sessions are kept in memory.
type Deps struct {
	Game     Game
	Tokens   *session.TokenManager
	Renderer *views.Renderer
	Hub      *ws.Hub
	Limiter  *RateLimiter
	Redis    *redis.Client
	Timings  views.Timings
}

// NewHTTPServer wires the player pages, the JSON API, the narration channel
// and the operational endpoints.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, deps Deps) *http.Server {
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: NewHandler(cfg, logger, deps),
	}
}

// NewHandler builds the routed handler behind NewHTTPServer.
func NewHandler(cfg *config.App, logger zerolog.Logger, deps Deps) http.Handler {
	h := &handlers{
		game:     deps.Game,
		renderer: deps.Renderer,
		hub:      deps.Hub,
		timings:  deps.Timings,
		logger:   logger.With().Str("component", "http").Logger(),
	}

	withSession := session.Middleware(deps.Tokens, deps.Game, session.CookieConfig{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
	}, logger)
	limited := func(next http.Handler) http.Handler {
		if deps.Limiter == nil {
			return next
		}
		return deps.Limiter.Middleware(next)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), deps.Redis); err != nil {
			h.logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("GET /{$}", withSession(http.HandlerFunc(h.page)))
	mux.Handle("POST /play/{action}", limited(withSession(http.HandlerFunc(h.play))))
	mux.Handle("GET /v1/game", withSession(http.HandlerFunc(h.getGame)))
	mux.Handle("POST /v1/game/{action}", limited(withSession(http.HandlerFunc(h.postGame))))
	mux.Handle("GET /audio/current.wav", withSession(http.HandlerFunc(h.currentAudio)))
	mux.Handle("GET /ws", withSession(http.HandlerFunc(h.websocket)))

	return requestLogger(logger, mux)
}

func pingDependencies(ctx context.Context, rdb *redis.Client) error {
	if rdb == nil {
		return nil
	}
	return rdb.Ping(ctx).Err()
}
