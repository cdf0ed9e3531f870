package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitallabhq/voiceagent-platform/internal/conversation"
	"github.com/digitallabhq/voiceagent-platform/internal/tenancy"
)

type stubVerifier struct{}

func (stubVerifier) VerifyToken(token string) (tenancy.Identity, error) {
	if token != "good-token" {
		return tenancy.Identity{}, assertionError("bad token")
	}
	return tenancy.Identity{UserID: "user-1", Email: "owner@example.com"}, nil
}

type assertionError string

func (e assertionError) Error() string { return string(e) }

type stubAuthorizer struct{}

func (stubAuthorizer) Get(ctx context.Context, userID, conversationID string) (*conversation.Conversation, error) {
	if conversationID != "conv-1" || userID != "user-1" {
		return nil, conversation.ErrConversationNotFound
	}
	return &conversation.Conversation{ID: conversationID}, nil
}

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil)
	handler := NewHandler(hub, stubVerifier{}, stubAuthorizer{}, func(*http.Request) bool { return true }, nil)

	r := chi.NewRouter()
	r.Get("/ws/calls/{conversationID}", handler.Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestHubDeliversCallEvents(t *testing.T) {
	hub, srv := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/calls/conv-1?token=good-token"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Watchers("conv-1") == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish("conv-1", conversation.CallEvent{
		Type:           "turn",
		ConversationID: "conv-1",
		Content:        "hello there",
		Timestamp:      time.Now().UTC(),
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event conversation.CallEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "turn", event.Type)
	assert.Equal(t, "hello there", event.Content)
}

func TestHubRejectsBadToken(t *testing.T) {
	_, srv := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/calls/conv-1?token=wrong"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHubRejectsForeignConversation(t *testing.T) {
	_, srv := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/calls/not-mine?token=good-token"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHubPublishWithoutWatchers(t *testing.T) {
	hub := NewHub(nil)
	// Must not panic or block.
	hub.Publish("nobody-home", conversation.CallEvent{Type: "call_ended"})
	assert.Equal(t, 0, hub.Watchers("nobody-home"))
}

func TestHubClientDisconnectLeavesRoom(t *testing.T) {
	hub, srv := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/calls/conv-1?token=good-token"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Watchers("conv-1") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Watchers("conv-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}
