package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"meetmax/internal/chat"
)

type queryAuth struct{}

func (queryAuth) Authenticate(r *http.Request) (string, error) {
	if id := r.URL.Query().Get("user"); id != "" {
		return id, nil
	}
	return "", errors.New("no user")
}

type frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Payload   json.RawMessage `json:"payload"`
}

type wsEnv struct {
	*fixture
	hub    *chat.Hub
	server *httptest.Server
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	f := newFixture(t)
	hub := chat.NewHub()
	f.stream = chat.NewStream(f.store, f.registry, hub)
	srv := httptest.NewServer(chat.NewWSHandler(hub, f.registry, queryAuth{}))
	t.Cleanup(srv.Close)
	return &wsEnv{fixture: f, hub: hub, server: srv}
}

func (e *wsEnv) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?user=" + userID
	conn, err := websocket.Dial(url, "", e.server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var raw string
	require.NoError(t, websocket.Message.Receive(conn, &raw))
	var f frame
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	return f
}

func sendFrame(t *testing.T, conn *websocket.Conn, typ, requestID string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	out, err := json.Marshal(frame{Type: typ, RequestID: requestID, Payload: raw})
	require.NoError(t, err)
	require.NoError(t, websocket.Message.Send(conn, string(out)))
}

func TestWSRejectsAnonymousUpgrade(t *testing.T) {
	env := newWSEnv(t)

	resp, err := http.Get(env.server.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSReceivesNewMessagesForOwnConversations(t *testing.T) {
	env := newWSEnv(t)
	ctx := context.Background()
	a := env.user(t, "a@example.com")
	b := env.user(t, "b@example.com")
	c := env.user(t, "c@example.com")
	conv, err := env.registry.FindOrCreate(ctx, a, b)
	require.NoError(t, err)
	other, err := env.registry.FindOrCreate(ctx, a, c)
	require.NoError(t, err)

	connB := env.dial(t, b)
	ready := readFrame(t, connB)
	require.Equal(t, "ready", ready.Type)
	var readyPayload struct {
		ConversationIDs []string `json:"conversationIds"`
	}
	require.NoError(t, json.Unmarshal(ready.Payload, &readyPayload))
	assert.Equal(t, []string{conv.ID}, readyPayload.ConversationIDs)

	// b is not in the a/c conversation and must not see its traffic.
	_, err = env.stream.PostMessage(ctx, a, other.ID, "not for b", nil)
	require.NoError(t, err)
	msg, err := env.stream.PostMessage(ctx, a, conv.ID, "hello b", nil)
	require.NoError(t, err)

	got := readFrame(t, connB)
	require.Equal(t, chat.EventNewMessage, got.Type)
	var payload chat.Message
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, msg.ID, payload.ID)
	assert.Equal(t, "hello b", payload.Content)
}

func TestWSFollowsConversationsStartedAfterConnect(t *testing.T) {
	env := newWSEnv(t)
	ctx := context.Background()
	a := env.user(t, "a@example.com")
	b := env.user(t, "b@example.com")

	connB := env.dial(t, b)
	require.Equal(t, "ready", readFrame(t, connB).Type)

	conv, err := env.registry.FindOrCreate(ctx, a, b)
	require.NoError(t, err)
	msg, err := env.stream.PostMessage(ctx, a, conv.ID, "first hello", nil)
	require.NoError(t, err)

	got := readFrame(t, connB)
	require.Equal(t, chat.EventNewMessage, got.Type)
	var payload chat.Message
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, msg.ID, payload.ID)
	assert.Equal(t, conv.ID, payload.ConversationID)
	assert.Equal(t, 1, env.hub.Subscribers(conv.ID))
}

func TestWSJoinLeaveAndPing(t *testing.T) {
	env := newWSEnv(t)
	ctx := context.Background()
	a := env.user(t, "a@example.com")
	b := env.user(t, "b@example.com")
	outsider := env.user(t, "c@example.com")

	connA := env.dial(t, a)
	require.Equal(t, "ready", readFrame(t, connA).Type)

	conv, err := env.registry.FindOrCreate(ctx, a, b)
	require.NoError(t, err)

	sendFrame(t, connA, "ping", "r1", nil)
	pong := readFrame(t, connA)
	assert.Equal(t, "pong", pong.Type)
	assert.Equal(t, "r1", pong.RequestID)

	sendFrame(t, connA, "conversation.join", "r2", map[string]string{"conversationId": conv.ID})
	joined := readFrame(t, connA)
	assert.Equal(t, "joined", joined.Type)
	assert.Equal(t, "r2", joined.RequestID)
	assert.Equal(t, 1, env.hub.Subscribers(conv.ID))

	sendFrame(t, connA, "conversation.leave", "r3", map[string]string{"conversationId": conv.ID})
	left := readFrame(t, connA)
	assert.Equal(t, "left", left.Type)
	assert.Equal(t, 0, env.hub.Subscribers(conv.ID))

	connOut := env.dial(t, outsider)
	require.Equal(t, "ready", readFrame(t, connOut).Type)
	sendFrame(t, connOut, "conversation.join", "r4", map[string]string{"conversationId": conv.ID})
	denied := readFrame(t, connOut)
	assert.Equal(t, "error", denied.Type)
	assert.Contains(t, string(denied.Payload), "FORBIDDEN")
	assert.Equal(t, 0, env.hub.Subscribers(conv.ID))

	sendFrame(t, connOut, "bogus", "r5", nil)
	unknown := readFrame(t, connOut)
	assert.Equal(t, "error", unknown.Type)
	assert.Equal(t, "r5", unknown.RequestID)
}
