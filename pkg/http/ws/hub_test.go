package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHubServer(t *testing.T, hub *Hub) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sid := r.URL.Query().Get("sid")
		c := NewConnection(conn, zerolog.Nop())
		hub.RegisterConnection(sid, c)
		go c.WritePump()
		c.ReadPump(func(Message) error { return nil })
		hub.UnregisterConnection(sid, c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubDeliversToEveryConnectionOfSession(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	url := newHubServer(t, hub)

	tab1 := dial(t, url+"?sid=a")
	tab2 := dial(t, url+"?sid=a")
	other := dial(t, url+"?sid=b")
	require.Eventually(t, func() bool {
		return hub.Connections("a") == 2 && hub.Connections("b") == 1
	}, time.Second, 5*time.Millisecond)

	msg, err := NewMessage(TypeStateChanged, StateChangedPayload{State: "LEVEL_1"})
	require.NoError(t, err)
	require.NoError(t, hub.SendToSession("a", msg))

	for _, c := range []*websocket.Conn{tab1, tab2} {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		var got Message
		require.NoError(t, c.ReadJSON(&got))
		assert.Equal(t, TypeStateChanged, got.Type)
		assert.JSONEq(t, `{"state":"LEVEL_1"}`, string(got.Payload))
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	var none Message
	assert.Error(t, other.ReadJSON(&none))

	assert.ErrorIs(t, hub.SendToSession("missing", msg), ErrConnectionNotFound)

	_ = tab1.Close()
	assert.Eventually(t, func() bool { return hub.Connections("a") == 1 }, time.Second, 5*time.Millisecond)
}

func TestConnectionSendQueue(t *testing.T) {
	c := NewConnection(nil, zerolog.Nop())

	for i := 0; i < sendQueueLen; i++ {
		require.NoError(t, c.Send(Message{Type: TypePong}))
	}
	assert.ErrorIs(t, c.Send(Message{Type: TypePong}), ErrSendQueueFull)

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Send(Message{Type: TypePong}), ErrConnectionClosed)
}

func TestNewMessageWithoutPayload(t *testing.T) {
	msg, err := NewMessage(TypePong, nil)
	require.NoError(t, err)
	assert.Equal(t, Message{Type: TypePong}, msg)
}
