package stats

import (
	"encoding/json"
	"net/http"

	"github.com/digitallabhq/voiceagent-platform/internal/tenancy"
	"github.com/digitallabhq/voiceagent-platform/pkg/logging"
)

// Handler serves the reporting endpoints.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

// NewHandler creates a new stats handler
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("stats: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// UserStatistics handles GET /api/statistics. An optional agent_id query
// parameter narrows the rollup to one persona.
func (h *Handler) UserStatistics(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenancy.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	s, err := h.repo.UserStatistics(r.Context(), identity.UserID, r.URL.Query().Get("agent_id"))
	if err != nil {
		h.logger.Error("statistics query failed", "user_id", identity.UserID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*Statistics{"statistics": s})
}

// SystemStats handles GET /api/admin/stats. Admin gating happens in the
// router middleware.
func (h *Handler) SystemStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.SystemStats(r.Context())
	if err != nil {
		h.logger.Error("system stats query failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*SystemStats{"stats": s})
}

// ListUsers handles GET /api/admin/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.repo.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("user listing query failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []AdminUser{}
	}
	writeJSON(w, http.StatusOK, map[string][]AdminUser{"users": users})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
