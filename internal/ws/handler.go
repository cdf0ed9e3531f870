package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/digitallabhq/voiceagent-platform/internal/auth"
	"github.com/digitallabhq/voiceagent-platform/internal/conversation"
	"github.com/digitallabhq/voiceagent-platform/pkg/logging"
)

// ConversationAuthorizer checks that a user owns a conversation before they
// may watch its live events.
type ConversationAuthorizer interface {
	Get(ctx context.Context, userID, conversationID string) (*conversation.Conversation, error)
}

// Handler upgrades /ws/calls/{conversationID} requests and attaches the
// client to the hub. Browsers cannot set an Authorization header on a
// websocket, so the JWT travels as a token query parameter.
type Handler struct {
	hub      *Hub
	verifier auth.TokenVerifier
	convs    ConversationAuthorizer
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket handler. checkOrigin receives the request
// origin; nil allows same-host requests only (the gorilla default).
func NewHandler(hub *Hub, verifier auth.TokenVerifier, convs ConversationAuthorizer, checkOrigin func(*http.Request) bool, logger *logging.Logger) *Handler {
	if hub == nil {
		panic("ws: hub required")
	}
	if verifier == nil {
		panic("ws: token verifier required")
	}
	if convs == nil {
		panic("ws: conversation authorizer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		hub:      hub,
		verifier: verifier,
		convs:    convs,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Serve handles GET /ws/calls/{conversationID}.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	identity, err := h.verifier.VerifyToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if _, err := h.convs.Get(r.Context(), identity.UserID, conversationID); err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		h.logger.Error("ws: conversation lookup failed", "conversation_id", conversationID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	client := newClient(h.hub, conversationID, conn)
	h.hub.join(conversationID, client)
	go client.writePump()
	go client.readPump()
}
