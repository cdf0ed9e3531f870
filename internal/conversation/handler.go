package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/digitallabhq/voiceagent-platform/internal/agents"
	"github.com/digitallabhq/voiceagent-platform/internal/tenancy"
	"github.com/digitallabhq/voiceagent-platform/pkg/logging"
)

// Handler handles HTTP requests for calls and conversation history
type Handler struct {
	service    *Service
	summarizer *Summarizer
	logger     *logging.Logger
}

// NewHandler creates a new conversation handler
func NewHandler(service *Service, summarizer *Summarizer, logger *logging.Logger) *Handler {
	if service == nil {
		panic("conversation: service required")
	}
	if summarizer == nil {
		panic("conversation: summarizer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, summarizer: summarizer, logger: logger}
}

type startCallRequest struct {
	AgentID string `json:"agent_id"`
	Mode    string `json:"mode"`
}

type turnRequest struct {
	Message string `json:"message"`
}

// StartCall handles POST /api/calls
func (h *Handler) StartCall(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req startCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" {
		http.Error(w, "agent_id is required", http.StatusBadRequest)
		return
	}
	mode := req.Mode
	if mode != "text" {
		mode = "voice"
	}

	result, err := h.service.StartCall(r.Context(), identity.UserID, req.AgentID, mode)
	if err != nil {
		h.respondServiceError(w, identity.UserID, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// ProcessTurn handles POST /api/calls/{conversationID}/messages
func (h *Handler) ProcessTurn(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.ProcessTurn(r.Context(), identity.UserID, chi.URLParam(r, "conversationID"), req.Message)
	if err != nil {
		h.respondServiceError(w, identity.UserID, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// EndCall handles POST /api/calls/{conversationID}/end
func (h *Handler) EndCall(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conv, err := h.service.EndCall(r.Context(), identity.UserID, chi.URLParam(r, "conversationID"), "manual")
	if err != nil {
		h.respondServiceError(w, identity.UserID, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Summarize handles POST /api/calls/{conversationID}/summary
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conv, err := h.summarizer.Summarize(r.Context(), identity.UserID, chi.URLParam(r, "conversationID"))
	if err != nil {
		h.respondServiceError(w, identity.UserID, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// List handles GET /api/conversations. An optional agent_id query parameter
// narrows the list to one persona.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var (
		list []*Conversation
		err  error
	)
	if agentID := r.URL.Query().Get("agent_id"); agentID != "" {
		list, err = h.service.ListByAgent(r.Context(), identity.UserID, agentID)
	} else {
		list, err = h.service.List(r.Context(), identity.UserID)
	}
	if err != nil {
		h.respondServiceError(w, identity.UserID, err)
		return
	}
	if list == nil {
		list = []*Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string][]*Conversation{"conversations": list})
}

// Get handles GET /api/conversations/{conversationID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conv, err := h.service.Get(r.Context(), identity.UserID, chi.URLParam(r, "conversationID"))
	if err != nil {
		h.respondServiceError(w, identity.UserID, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Messages handles GET /api/conversations/{conversationID}/messages
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	history, err := h.service.Transcript(r.Context(), identity.UserID, chi.URLParam(r, "conversationID"))
	if err != nil {
		h.respondServiceError(w, identity.UserID, err)
		return
	}
	if history == nil {
		history = []Message{}
	}
	writeJSON(w, http.StatusOK, map[string][]Message{"messages": history})
}

// Export handles GET /api/conversations/{conversationID}/export, returning
// the transcript as a plain-text download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id := chi.URLParam(r, "conversationID")
	text, err := h.service.ExportTranscript(r.Context(), identity.UserID, id)
	if err != nil {
		h.respondServiceError(w, identity.UserID, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transcript-%s.txt"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// Delete handles DELETE /api/conversations/{conversationID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.Delete(r.Context(), identity.UserID, chi.URLParam(r, "conversationID")); err != nil {
		h.respondServiceError(w, identity.UserID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, ErrConversationNotFound):
		http.Error(w, "conversation not found", http.StatusNotFound)
	case errors.Is(err, agents.ErrAgentNotFound):
		http.Error(w, "agent not found", http.StatusNotFound)
	case errors.Is(err, ErrCallEnded):
		http.Error(w, "call already ended", http.StatusConflict)
	case errors.Is(err, ErrEmptyMessage):
		http.Error(w, "message is required", http.StatusBadRequest)
	case errors.Is(err, ErrEmptyConversation):
		http.Error(w, "nothing to summarize", http.StatusConflict)
	case errors.Is(err, ErrBackendUnavailable):
		h.logger.Error("language model backend unavailable", "user_id", userID, "error", err)
		http.Error(w, "assistant temporarily unavailable", http.StatusBadGateway)
	default:
		h.logger.Error("conversation service error", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
