package agents

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/digitallabhq/voiceagent-platform/internal/tenancy"
	"github.com/digitallabhq/voiceagent-platform/pkg/logging"
)

// Handler handles HTTP requests for agent personas
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new agents handler
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /api/agents
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	displayName := req.AgentName
	if displayName == "" {
		displayName = defaultAgentName
	}
	agent := &Agent{
		UserID:       identity.UserID,
		DisplayName:  displayName,
		BusinessName: req.BusinessName,
		Industry:     req.Industry,
		Services:     req.Services,
		Tone:         req.Tone,
		SystemPrompt: BuildSystemPrompt(req),
		Greeting:     BuildGreeting(req),
		Voice:        Voice{Gender: "male", Pitch: 0, Speed: 1},
	}

	created, err := h.repo.Create(r.Context(), agent)
	if err != nil {
		h.logger.Error("failed to create agent", "user_id", identity.UserID, "error", err)
		http.Error(w, "failed to create agent", http.StatusInternalServerError)
		return
	}

	h.logger.Info("agent created", "agent_id", created.ID, "user_id", identity.UserID)
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /api/agents
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	list, err := h.repo.ListByUser(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to list agents", "user_id", identity.UserID, "error", err)
		http.Error(w, "failed to list agents", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*Agent{}
	}
	writeJSON(w, http.StatusOK, map[string][]*Agent{"agents": list})
}

// Get handles GET /api/agents/{agentID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	agent, err := h.repo.GetByID(r.Context(), identity.UserID, chi.URLParam(r, "agentID"))
	if err != nil {
		h.respondRepoError(w, identity.UserID, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// Update handles PUT /api/agents/{agentID}. The system prompt and greeting
// are regenerated from the submitted persona fields.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	displayName := req.AgentName
	if displayName == "" {
		displayName = defaultAgentName
	}
	agent := &Agent{
		ID:           chi.URLParam(r, "agentID"),
		UserID:       identity.UserID,
		DisplayName:  displayName,
		BusinessName: req.BusinessName,
		Industry:     req.Industry,
		Services:     req.Services,
		Tone:         req.Tone,
		SystemPrompt: BuildSystemPrompt(req),
		Greeting:     BuildGreeting(req),
	}

	if err := h.repo.Update(r.Context(), agent); err != nil {
		h.respondRepoError(w, identity.UserID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// UpdateVoice handles PUT /api/agents/{agentID}/voice
func (h *Handler) UpdateVoice(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var voice Voice
	if err := json.NewDecoder(r.Body).Decode(&voice); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	voice.Clamp()

	if err := h.repo.UpdateVoice(r.Context(), identity.UserID, chi.URLParam(r, "agentID"), voice); err != nil {
		h.respondRepoError(w, identity.UserID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "voice": voice})
}

// Delete handles DELETE /api/agents/{agentID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.repo.Delete(r.Context(), identity.UserID, chi.URLParam(r, "agentID")); err != nil {
		h.respondRepoError(w, identity.UserID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) respondRepoError(w http.ResponseWriter, userID string, err error) {
	if errors.Is(err, ErrAgentNotFound) {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	h.logger.Error("agent repository error", "user_id", userID, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
