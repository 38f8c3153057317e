package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/story-quest/internal/game"
	"github.com/gokatarajesh/story-quest/internal/session"
	httperrors "github.com/gokatarajesh/story-quest/pkg/http/errors"
	ws "github.com/gokatarajesh/story-quest/pkg/http/ws"
)

// websocket handles GET /ws. The socket is push-only apart from keepalive
// pings; all player actions go through the HTTP routes.
func (h *handlers) websocket(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())

	conn, err := WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	logger := h.logger.With().Str("session_id", id).Logger()
	wsConn := ws.NewConnection(conn, logger)
	h.hub.RegisterConnection(id, wsConn)

	go wsConn.WritePump()

	wsConn.ReadPump(func(msg ws.Message) error {
		return handleSocketMessage(wsConn, msg)
	})

	h.hub.UnregisterConnection(id, wsConn)
}

func handleSocketMessage(conn *ws.Connection, msg ws.Message) error {
	switch msg.Type {
	case ws.TypePing:
		return conn.Send(ws.Message{Type: ws.TypePong, RequestID: msg.RequestID})
	default:
		reply, err := ws.NewMessage(ws.TypeError, ws.ErrorPayload{
			Code:    httperrors.ErrCodeUnknownMessageType,
			Message: fmt.Sprintf("Unknown message type: %s", msg.Type),
		})
		if err != nil {
			return err
		}
		reply.RequestID = msg.RequestID
		return conn.Send(reply)
	}
}

// HubNotifier pushes orchestrator notifications to the session's sockets.
type HubNotifier struct {
	hub    *ws.Hub
	logger zerolog.Logger
}

var _ game.Notifier = (*HubNotifier)(nil)

func NewHubNotifier(hub *ws.Hub, logger zerolog.Logger) *HubNotifier {
	return &HubNotifier{
		hub:    hub,
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

// Notify implements game.Notifier. Sessions without an open socket are
// skipped before anything is encoded.
func (n *HubNotifier) Notify(sessionID string, note game.Notification) {
	if n.hub.Connections(sessionID) == 0 {
		return
	}
	msg, err := notificationMessage(note)
	if err != nil {
		n.logger.Warn().Err(err).Str("kind", note.Kind).Msg("encode notification")
		return
	}
	if err := n.hub.SendToSession(sessionID, msg); err != nil && !errors.Is(err, ws.ErrConnectionNotFound) {
		n.logger.Debug().Err(err).Str("session_id", sessionID).Str("kind", note.Kind).Msg("notification not delivered")
	}
}

func notificationMessage(note game.Notification) (ws.Message, error) {
	switch note.Kind {
	case game.NotifyStateChanged:
		return ws.NewMessage(ws.TypeStateChanged, ws.StateChangedPayload{State: string(note.State)})
	case game.NotifyNarrationStarted:
		return ws.NewMessage(ws.TypeNarrationStarted, ws.NarrationPayload{
			PlaybackID: note.PlaybackID,
			AudioURL:   "/audio/current.wav?pb=" + url.QueryEscape(note.PlaybackID),
		})
	case game.NotifyNarrationEnded:
		return ws.NewMessage(ws.TypeNarrationEnded, ws.NarrationPayload{PlaybackID: note.PlaybackID})
	case game.NotifyNarrationStopped:
		return ws.NewMessage(ws.TypeNarrationStopped, ws.NarrationPayload{PlaybackID: note.PlaybackID})
	case game.NotifyNarrationUnavailable:
		return ws.NewMessage(ws.TypeNarrationUnavailable, ws.NarrationPayload{Message: note.Message})
	default:
		return ws.Message{}, fmt.Errorf("unknown notification kind %q", note.Kind)
	}
}
