package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/story-quest/internal/audio"
	"github.com/gokatarajesh/story-quest/internal/game"
	"github.com/gokatarajesh/story-quest/internal/logging"
	"github.com/gokatarajesh/story-quest/internal/session"
	"github.com/gokatarajesh/story-quest/internal/views"
	httperrors "github.com/gokatarajesh/story-quest/pkg/http/errors"
	ws "github.com/gokatarajesh/story-quest/pkg/http/ws"
)

const maxInputLen = 200

var errUnknownAction = errors.New("unknown action")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ActionRequest is the body of POST /v1/game/{action}.
type ActionRequest struct {
	Text       string `json:"text" validate:"max=200"`
	Difficulty string `json:"difficulty"`
}

type handlers struct {
	game     Game
	renderer *views.Renderer
	hub      *ws.Hub
	timings  views.Timings
	logger   zerolog.Logger
}

// page handles GET /
func (h *handlers) page(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	snap, err := h.game.Snapshot(r.Context(), id)
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.renderer.Render(w, views.NewModel(snap, h.timings)); err != nil {
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Msg("render page")
	}
}

// play handles the HTML form posts under /play/. Browsers are redirected back
// to the page; clients asking for JSON get the model instead.
func (h *handlers) play(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")
	text := r.FormValue(formField(action))
	if len([]rune(text)) > maxInputLen {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "Input is too long", formField(action))
		return
	}

	ev, err := eventFor(action, text, r.FormValue("difficulty"))
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}

	id, _ := session.FromContext(r.Context())
	snap, err := h.game.Dispatch(r.Context(), id, ev)
	if err != nil {
		if !wantsJSON(r) && (errors.Is(err, game.ErrBusy) || errors.Is(err, game.ErrInvalidTransition)) {
			// A double submit or a stale tab; the page shows the current state.
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		h.respondGameError(w, r, err)
		return
	}

	if wantsJSON(r) {
		h.respondJSON(w, http.StatusOK, views.NewModel(snap, h.timings))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// getGame handles GET /v1/game
func (h *handlers) getGame(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	snap, err := h.game.Snapshot(r.Context(), id)
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, views.NewModel(snap, h.timings))
}

// postGame handles POST /v1/game/{action}
func (h *handlers) postGame(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
			return
		}
	}
	if err := validate.Struct(req); err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "Text is too long", "text")
		return
	}

	ev, err := eventFor(r.PathValue("action"), req.Text, req.Difficulty)
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}

	id, _ := session.FromContext(r.Context())
	snap, err := h.game.Dispatch(r.Context(), id, ev)
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, views.NewModel(snap, h.timings))
}

// currentAudio handles GET /audio/current.wav
func (h *handlers) currentAudio(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	pb, ok := h.game.Clip(id)
	if !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNoNarration, "Nothing is being narrated")
		return
	}
	if want := r.URL.Query().Get("pb"); want != "" && want != pb.ID.String() {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNoNarration, "Narration has moved on")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(audio.EncodeWAV(pb.Clip.Buffer))
}

func (h *handlers) respondGameError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errUnknownAction):
		httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownAction, err.Error())
	case errors.Is(err, game.ErrInvalidDifficulty):
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidDifficulty, "Unknown difficulty", "difficulty")
	case errors.Is(err, game.ErrBusy):
		httperrors.RespondConflict(w, httperrors.ErrCodeBusy, "The adventure is still being prepared")
	case errors.Is(err, game.ErrInvalidTransition):
		httperrors.RespondConflict(w, httperrors.ErrCodeInvalidTransition, "That is not possible right now")
	case errors.Is(err, session.ErrNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "Session not found")
	default:
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Msg("game request failed")
		httperrors.RespondInternalError(w, "Something went wrong")
	}
}

func (h *handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn().Err(err).Msg("encode response")
	}
}

// eventFor maps a route action onto a game event.
func eventFor(action, text, difficulty string) (game.Event, error) {
	switch action {
	case "question":
		return game.SubmitQuestion{Text: text}, nil
	case "answer":
		return game.SubmitAnswer{Text: text}, nil
	case "difficulty":
		d, err := game.ParseDifficulty(difficulty)
		if err != nil {
			return nil, err
		}
		return game.SelectDifficulty{Difficulty: d}, nil
	case "read-aloud":
		return game.ReadAloud{}, nil
	case "stop":
		return game.StopNarration{}, nil
	case "restart":
		return game.Restart{}, nil
	case "dismiss":
		return game.DismissNotice{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownAction, action)
	}
}

func formField(action string) string {
	if action == "answer" {
		return "answer"
	}
	return "question"
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
