package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/businessboom/server/adapters/audiostore"
	"github.com/businessboom/server/adapters/llm"
	"github.com/businessboom/server/adapters/memory"
	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/usecase"
)

type testEnv struct {
	hub      *Hub
	server   *httptest.Server
	store    *memory.Store
	resolver *usecase.ContextResolver
}

func setupTestHub(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()

	audio, err := audiostore.NewLocal(filepath.Join(t.TempDir(), "up"), filepath.Join(t.TempDir(), "fb"), "/uploads/audio/", logger)
	require.NoError(t, err)

	businesses := usecase.NewBusinessService(store.Businesses(), store.Conversations(), logger)
	resolver := usecase.NewContextResolver(businesses, time.Hour, 5*time.Second, logger)
	registry := usecase.NewSessionRegistry(usecase.ControllerDeps{
		Persistence: usecase.NewConversationStore(store.Conversations(), audio),
		Chat:        llm.MockLLM{},
		Fallback:    audio,
		Context:     resolver,
		Logger:      logger,
	})

	hub := NewHub(registry, nil, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return hub.HandleWebSocket(c, c.QueryParam("user"))
	})
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return &testEnv{hub: hub, server: server, store: store, resolver: resolver}
}

func (env *testEnv) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?user=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func receive(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func expectStatus(t *testing.T, conn *websocket.Conn, status string) {
	t.Helper()
	msg := receive(t, conn)
	require.Equal(t, string(MessageTypeStatus), msg["type"], "message: %v", msg)
	assert.Equal(t, status, msg["status"])
}

func TestPingPong(t *testing.T) {
	env := setupTestHub(t)
	conn := env.dial(t, "user-1")

	send(t, conn, map[string]string{"type": "ping", "data": "test-ping"})
	msg := receive(t, conn)
	assert.Equal(t, "pong", msg["type"])
	assert.Equal(t, "test-ping", msg["data"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{invalid json}`)))
	msg = receive(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "invalid_message", msg["error_code"])
}

func TestChatSessionOverWebSocket(t *testing.T) {
	env := setupTestHub(t)
	conn := env.dial(t, "user-1")

	send(t, conn, map[string]string{"type": "start_session", "mode": "chat"})
	expectStatus(t, conn, usecase.StatusCreating)

	prompt := receive(t, conn)
	require.Equal(t, string(MessageTypeBusinessContextRequired), prompt["type"])
	assert.NotEmpty(t, prompt["business_types"])

	send(t, conn, map[string]interface{}{
		"type": "business_context",
		"business": map[string]string{
			"business_name": "Campus Coffee",
			"business_type": "startup",
			"industry":      "food_beverage",
		},
	})

	expectStatus(t, conn, usecase.StatusChatActive)
	started := receive(t, conn)
	require.Equal(t, string(MessageTypeSessionStarted), started["type"])

	send(t, conn, map[string]string{"type": "chat_message", "text": "How do I price my coffee?"})
	reply := receive(t, conn)
	require.Equal(t, string(MessageTypeChatReply), reply["type"])
	turn := reply["turn"].(map[string]interface{})
	assert.Equal(t, "ai", turn["speaker"])
	assert.Contains(t, turn["text"], "How do I price my coffee?")

	send(t, conn, map[string]string{"type": "end_session"})
	expectStatus(t, conn, usecase.StatusEnding)
	expectStatus(t, conn, usecase.StatusReady)

	ended := receive(t, conn)
	require.Equal(t, string(MessageTypeSessionEnded), ended["type"])
	result := ended["result"].(map[string]interface{})
	assert.Contains(t, result["transcript"], "USER: How do I price my coffee?")
	assert.Nil(t, ended["error"])

	business, ok := env.resolver.Current("user-1")
	require.True(t, ok)
	assert.Equal(t, "Campus Coffee", business.Name)
}

func TestChatMessagesPersistInArrivalOrder(t *testing.T) {
	env := setupTestHub(t)
	conn := env.dial(t, "user-1")

	send(t, conn, map[string]string{"type": "start_session", "mode": "chat"})
	expectStatus(t, conn, usecase.StatusCreating)
	require.Equal(t, string(MessageTypeBusinessContextRequired), receive(t, conn)["type"])
	send(t, conn, map[string]interface{}{
		"type": "business_context",
		"business": map[string]string{
			"business_name": "Campus Coffee",
			"business_type": "startup",
			"industry":      "food_beverage",
		},
	})
	expectStatus(t, conn, usecase.StatusChatActive)
	require.Equal(t, string(MessageTypeSessionStarted), receive(t, conn)["type"])

	const count = 20
	sent := make([]string, count)
	for i := range sent {
		sent[i] = fmt.Sprintf("msg-%02d", i)
		send(t, conn, map[string]string{"type": "chat_message", "text": sent[i]})
	}

	for i := 0; i < count; i++ {
		reply := receive(t, conn)
		require.Equal(t, string(MessageTypeChatReply), reply["type"], "message: %v", reply)
		assert.Contains(t, reply["turn"].(map[string]interface{})["text"], sent[i])
	}

	business, ok := env.resolver.Current("user-1")
	require.True(t, ok)
	conversations, err := env.store.Conversations().ListByBusiness(context.Background(), "user-1", business.ID)
	require.NoError(t, err)
	require.Len(t, conversations, 1)

	var persisted []string
	for _, m := range conversations[0].Messages {
		if m.Sender == entities.SpeakerUser {
			persisted = append(persisted, m.Content)
		}
	}
	assert.Equal(t, sent, persisted)
}

func TestCancelledContextPromptFailsStart(t *testing.T) {
	env := setupTestHub(t)
	conn := env.dial(t, "user-1")

	send(t, conn, map[string]string{"type": "start_session", "mode": "chat"})
	expectStatus(t, conn, usecase.StatusCreating)
	require.Equal(t, string(MessageTypeBusinessContextRequired), receive(t, conn)["type"])

	send(t, conn, map[string]interface{}{"type": "business_context", "cancelled": true})
	expectStatus(t, conn, usecase.StatusStartFailed)

	msg := receive(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "business_context_required", msg["error_code"])
}

func TestAnswerWithoutPrompt(t *testing.T) {
	env := setupTestHub(t)
	conn := env.dial(t, "user-1")

	send(t, conn, map[string]interface{}{"type": "business_confirm", "create_new": true})
	msg := receive(t, conn)
	assert.Equal(t, "no_prompt_pending", msg["error_code"])
}

func TestVideoUnavailable(t *testing.T) {
	env := setupTestHub(t)
	conn := env.dial(t, "user-1")

	send(t, conn, map[string]string{"type": "start_session", "mode": "video"})
	msg := receive(t, conn)
	assert.Equal(t, "video_unavailable", msg["error_code"])
}

func TestSelectModeUsedByStart(t *testing.T) {
	env := setupTestHub(t)
	conn := env.dial(t, "user-1")

	send(t, conn, map[string]string{"type": "select_mode", "mode": "chat"})
	msg := receive(t, conn)
	require.Equal(t, string(MessageTypeModeSelected), msg["type"])
	assert.Equal(t, "chat", msg["mode"])

	// selecting a mode opens the business prompt; the start joins it
	require.Equal(t, string(MessageTypeBusinessContextRequired), receive(t, conn)["type"])

	send(t, conn, map[string]string{"type": "start_session"})
	expectStatus(t, conn, usecase.StatusCreating)

	send(t, conn, map[string]interface{}{
		"type": "business_context",
		"business": map[string]string{
			"business_name": "Campus Coffee",
			"business_type": "startup",
			"industry":      "food_beverage",
		},
	})
	expectStatus(t, conn, usecase.StatusChatActive)

	started := receive(t, conn)
	require.Equal(t, string(MessageTypeSessionStarted), started["type"])
	assert.Equal(t, "chat", started["session"].(map[string]interface{})["mode"])

	summaries, err := env.store.Businesses().ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestNewConnectionReplacesOld(t *testing.T) {
	env := setupTestHub(t)
	first := env.dial(t, "user-1")
	_ = env.dial(t, "user-1")

	require.Eventually(t, func() bool {
		return env.hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
	assert.True(t, env.hub.Connected("user-1"))
}

func TestOriginChecker(t *testing.T) {
	allowAll := originChecker(nil)
	restricted := originChecker([]string{"https://app.example"})

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.True(t, allowAll(req))
	assert.False(t, restricted(req))

	req.Header.Set("Origin", "https://app.example")
	assert.True(t, restricted(req))
}
