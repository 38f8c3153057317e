package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/story-quest/internal/config"
	"github.com/gokatarajesh/story-quest/internal/game"
	"github.com/gokatarajesh/story-quest/internal/generation"
	"github.com/gokatarajesh/story-quest/internal/session"
	"github.com/gokatarajesh/story-quest/internal/views"
	httperrors "github.com/gokatarajesh/story-quest/pkg/http/errors"
	ws "github.com/gokatarajesh/story-quest/pkg/http/ws"
)

type stubGenerator struct {
	narration []byte
}

func (s stubGenerator) GenerateLevel1(context.Context, string) (generation.Level1Content, error) {
	return generation.Level1Content{Story: "熊猫要搬竹子", Question: "15 x 8 = ?", Answer: "120"}, nil
}

func (s stubGenerator) GenerateLevel2(context.Context, string, string, string) (generation.Level2Content, error) {
	return generation.Level2Content{Story: "火山口的桥", Question: "120 ÷ 2 = ?", Answer: "60"}, nil
}

func (s stubGenerator) GenerateAbilityReport(context.Context, string, int, string) (generation.AbilityReport, error) {
	return generation.AbilityReport{Mastery: 90, Logic: 80, Advice: "多做应用题"}, nil
}

func (s stubGenerator) GenerateIllustration(context.Context, string) string {
	return "data:image/png;base64,AA=="
}

func (s stubGenerator) GenerateNarration(context.Context, string) []byte {
	return s.narration
}

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	jar    http.CookieJar
}

func newTestEnv(t *testing.T, gen game.Generator, rdb *redis.Client) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	hub := ws.NewHub(logger)
	orch := game.NewOrchestrator(session.NewMemoryStore(time.Hour), gen, NewHubNotifier(hub, logger), game.Config{}, logger)
	t.Cleanup(orch.Close)

	renderer, err := views.New()
	require.NoError(t, err)

	cfg := &config.App{Session: config.Session{CookieName: "sq"}}
	handler := NewHandler(cfg, logger, Deps{
		Game:     orch,
		Tokens:   session.NewTokenManager(session.TokenConfig{Secret: []byte("test-secret"), TTL: time.Hour}),
		Renderer: renderer,
		Hub:      hub,
		Limiter:  NewRateLimiter(1000, 1000, time.Minute, nil),
		Redis:    rdb,
		Timings:  views.DefaultTimings,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.CloseAll)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{srv: srv, client: client, jar: jar}
}

func (e *testEnv) act(t *testing.T, action string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	resp, err := e.client.Post(e.srv.URL+"/v1/game/"+action, "application/json", r)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) model(t *testing.T, action string, body any) views.Model {
	t.Helper()
	resp, data := e.act(t, action, body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var m views.Model
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var er httperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &er))
	return er.Error
}

func TestJSONAdventure(t *testing.T) {
	env := newTestEnv(t, stubGenerator{}, nil)

	m := env.model(t, "question", ActionRequest{Text: "15 x 8"})
	assert.Equal(t, game.StateLevel1, m.State)
	require.NotNil(t, m.Level)
	assert.Equal(t, "熊猫要搬竹子", m.Level.Story)
	assert.Equal(t, "15 x 8", m.InitialQuestion)

	m = env.model(t, "answer", ActionRequest{Text: "7"})
	assert.Equal(t, game.StateLevel1, m.State)
	assert.Equal(t, 1, m.L1FailCount)
	assert.Contains(t, m.Notices, views.Notice{Kind: "hint", Text: game.HintFirstMiss, DurationMS: 3000})

	m = env.model(t, "answer", ActionRequest{Text: " 120 "})
	assert.Equal(t, game.StateLevel1Feedback, m.State)
	assert.Len(t, m.Difficulties, 3)

	m = env.model(t, "difficulty", ActionRequest{Difficulty: "hard"})
	assert.Equal(t, game.StateLevel2, m.State)
	assert.Equal(t, game.DifficultyHard, m.Difficulty)

	resp, data := env.act(t, "answer", ActionRequest{Text: "60"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(data), `"answer"`)
	var final views.Model
	require.NoError(t, json.Unmarshal(data, &final))
	assert.Equal(t, game.StateFinalReward, final.State)
	require.NotNil(t, final.Ability)
	assert.Equal(t, 90.0, final.Ability.Mastery)

	m = env.model(t, "restart", nil)
	assert.Equal(t, game.StateInitial, m.State)
	assert.Equal(t, views.Examples, m.Examples)
}

func TestGetGameStartsSession(t *testing.T) {
	env := newTestEnv(t, stubGenerator{}, nil)

	resp, err := env.client.Get(env.srv.URL + "/v1/game")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	u, _ := url.Parse(env.srv.URL)
	require.Len(t, env.jar.Cookies(u), 1)

	var m views.Model
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	assert.Equal(t, game.StateInitial, m.State)
	assert.Equal(t, game.DifficultyMedium, m.Difficulty)
}

func TestActionErrors(t *testing.T) {
	env := newTestEnv(t, stubGenerator{}, nil)

	resp, data := env.act(t, "fly", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, httperrors.ErrCodeUnknownAction, errorCode(t, data))

	resp, data = env.act(t, "difficulty", ActionRequest{Difficulty: "NIGHTMARE"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, httperrors.ErrCodeInvalidDifficulty, errorCode(t, data))

	resp, data = env.act(t, "difficulty", ActionRequest{Difficulty: "HARD"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, httperrors.ErrCodeInvalidTransition, errorCode(t, data))

	resp, data = env.act(t, "question", ActionRequest{Text: strings.Repeat("数", 201)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, httperrors.ErrCodeInvalidRequest, errorCode(t, data))

	resp, err := env.client.Post(env.srv.URL+"/v1/game/question", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFormPostsRedirectToPage(t *testing.T) {
	env := newTestEnv(t, stubGenerator{}, nil)

	resp, err := env.client.PostForm(env.srv.URL+"/play/question", url.Values{"question": {"15 x 8"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	// Selecting a difficulty in LEVEL_1 is stale; the browser just goes back.
	resp, err = env.client.PostForm(env.srv.URL+"/play/difficulty", url.Values{"difficulty": {"EASY"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, err = env.client.Get(env.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(page), "熊猫要搬竹子")
	assert.Contains(t, string(page), `data-state="LEVEL_1"`)
}

func TestFormPostWithJSONAccept(t *testing.T) {
	env := newTestEnv(t, stubGenerator{}, nil)

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/play/dismiss", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var m views.Model
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	assert.Equal(t, game.StateInitial, m.State)
}

func TestCurrentAudio(t *testing.T) {
	// 10s of silence so the clip is still playing when fetched.
	env := newTestEnv(t, stubGenerator{narration: make([]byte, 480000)}, nil)

	resp, data := env.act(t, "dismiss", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, err := env.client.Get(env.srv.URL + "/audio/current.wav")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	env.model(t, "question", ActionRequest{Text: "15 x 8"})

	require.Eventually(t, func() bool {
		resp, err := env.client.Get(env.srv.URL + "/audio/current.wav")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ = io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "RIFF", string(data[:4]))

	resp, err = env.client.Get(env.srv.URL + "/audio/current.wav?pb=stale")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	m := env.model(t, "stop", nil)
	assert.Equal(t, game.StateLevel1, m.State)
}

func TestWebSocketPushesStateChanges(t *testing.T) {
	env := newTestEnv(t, stubGenerator{}, nil)
	env.model(t, "dismiss", nil)

	u, err := url.Parse(env.srv.URL)
	require.NoError(t, err)
	header := http.Header{}
	for _, c := range env.jar.Cookies(u) {
		header.Add("Cookie", c.String())
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(env.srv.URL, "http")+"/ws", header)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypePing, RequestID: "r1"}))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypePong, msg.Type)
	assert.Equal(t, "r1", msg.RequestID)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: "dance"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypeError, msg.Type)
	assert.Contains(t, string(msg.Payload), httperrors.ErrCodeUnknownMessageType)

	env.model(t, "question", ActionRequest{Text: "15 x 8"})

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypeStateChanged, msg.Type)
	var payload ws.StateChangedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, string(game.StateLevel1), payload.State)

	// The stub has no voice, so the player is told narration is unavailable.
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypeNarrationUnavailable, msg.Type)
	assert.Contains(t, string(msg.Payload), game.ToastNarrationUnavailable)
}

func TestNotificationMessage(t *testing.T) {
	msg, err := notificationMessage(game.Notification{Kind: game.NotifyNarrationStarted, PlaybackID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, ws.TypeNarrationStarted, msg.Type)
	assert.JSONEq(t, `{"playback_id":"abc","audio_url":"/audio/current.wav?pb=abc"}`, string(msg.Payload))

	_, err = notificationMessage(game.Notification{Kind: "mystery"})
	assert.Error(t, err)
}

func TestHubNotifierSkipsSessionsWithoutSockets(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	hub := ws.NewHub(zerolog.Nop())
	n := NewHubNotifier(hub, logger)

	// An unknown kind would log an encode warning if it were ever encoded.
	n.Notify("nobody-listening", game.Notification{Kind: "mystery"})
	assert.Empty(t, buf.String())
	assert.Equal(t, 0, hub.Connections("nobody-listening"))
}

func TestHealthAndReadiness(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	env := newTestEnv(t, stubGenerator{}, rdb)

	for path, want := range map[string]int{"/healthz": http.StatusOK, "/readyz": http.StatusOK} {
		resp, err := env.client.Get(env.srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, path)
	}

	mr.Close()
	resp, err := env.client.Get(env.srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
