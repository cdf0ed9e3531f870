package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digitallabhq/voiceagent-platform/internal/agents"
	"github.com/digitallabhq/voiceagent-platform/internal/auth"
	"github.com/digitallabhq/voiceagent-platform/internal/conversation"
	httpmiddleware "github.com/digitallabhq/voiceagent-platform/internal/http/middleware"
	"github.com/digitallabhq/voiceagent-platform/internal/stats"
	"github.com/digitallabhq/voiceagent-platform/internal/ws"
	"github.com/digitallabhq/voiceagent-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	AuthHandler         *auth.Handler
	AgentsHandler       *agents.Handler
	ConversationHandler *conversation.Handler
	StatsHandler        *stats.Handler
	WSHandler           *ws.Handler
	TokenVerifier       auth.TokenVerifier
	AdminEmail          string
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string

	// Auth endpoints get their own per-IP throttle.
	AuthRateLimit float64
	AuthRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", handleHealth)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.AuthHandler != nil {
			public.Route("/api/auth", func(r chi.Router) {
				if cfg.AuthRateLimit > 0 {
					r.Use(httpmiddleware.RateLimit(cfg.AuthRateLimit, cfg.AuthRateBurst))
				}
				r.Post("/signup", cfg.AuthHandler.Signup)
				r.Post("/login", cfg.AuthHandler.Login)
			})
		}
		// Websocket auth happens in the handler (token query parameter).
		if cfg.WSHandler != nil {
			public.Get("/ws/calls/{conversationID}", cfg.WSHandler.Serve)
		}
	})

	// Authenticated API
	r.Group(func(api chi.Router) {
		api.Use(auth.RequireUser(cfg.TokenVerifier))

		if cfg.AuthHandler != nil {
			api.Get("/api/auth/me", cfg.AuthHandler.Me)
		}

		if cfg.AgentsHandler != nil {
			api.Route("/api/agents", func(r chi.Router) {
				r.Post("/", cfg.AgentsHandler.Create)
				r.Get("/", cfg.AgentsHandler.List)
				r.Route("/{agentID}", func(r chi.Router) {
					r.Get("/", cfg.AgentsHandler.Get)
					r.Put("/", cfg.AgentsHandler.Update)
					r.Delete("/", cfg.AgentsHandler.Delete)
					r.Put("/voice", cfg.AgentsHandler.UpdateVoice)
				})
			})
		}

		if cfg.ConversationHandler != nil {
			api.Route("/api/calls", func(r chi.Router) {
				r.Post("/", cfg.ConversationHandler.StartCall)
				r.Route("/{conversationID}", func(r chi.Router) {
					r.Post("/messages", cfg.ConversationHandler.ProcessTurn)
					r.Post("/end", cfg.ConversationHandler.EndCall)
					r.Post("/summary", cfg.ConversationHandler.Summarize)
				})
			})
			api.Route("/api/conversations", func(r chi.Router) {
				r.Get("/", cfg.ConversationHandler.List)
				r.Route("/{conversationID}", func(r chi.Router) {
					r.Get("/", cfg.ConversationHandler.Get)
					r.Delete("/", cfg.ConversationHandler.Delete)
					r.Get("/messages", cfg.ConversationHandler.Messages)
					r.Get("/export", cfg.ConversationHandler.Export)
				})
			})
		}

		if cfg.StatsHandler != nil {
			api.Get("/api/statistics", cfg.StatsHandler.UserStatistics)
			api.Route("/api/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin(cfg.AdminEmail))
				r.Get("/stats", cfg.StatsHandler.SystemStats)
				r.Get("/users", cfg.StatsHandler.ListUsers)
			})
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
