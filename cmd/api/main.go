package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/digitallabhq/voiceagent-platform/internal/agents"
	"github.com/digitallabhq/voiceagent-platform/internal/api/router"
	"github.com/digitallabhq/voiceagent-platform/internal/auth"
	"github.com/digitallabhq/voiceagent-platform/internal/config"
	"github.com/digitallabhq/voiceagent-platform/internal/conversation"
	"github.com/digitallabhq/voiceagent-platform/internal/notify"
	"github.com/digitallabhq/voiceagent-platform/internal/observability/metrics"
	"github.com/digitallabhq/voiceagent-platform/internal/stats"
	"github.com/digitallabhq/voiceagent-platform/internal/ws"
	"github.com/digitallabhq/voiceagent-platform/pkg/logging"
)

func main() {
	// Load .env in development; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting voiceagent-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Separate database/sql handle for the reporting queries.
	reportingDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open reporting db handle", "error", err)
		os.Exit(1)
	}
	defer func() { _ = reportingDB.Close() }()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, running without history cache", "error", err)
			_ = redisClient.Close()
			redisClient = nil
		} else {
			defer func() { _ = redisClient.Close() }()
		}
	}

	// Language-model backends: OpenAI-compatible primary (Groq in the
	// reference deployment), optional Gemini fallback.
	var llm conversation.LLMClient = conversation.NewOpenAIClient(conversation.OpenAIConfig{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})
	if cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("gemini fallback unavailable", "error", err)
		} else {
			llm = conversation.NewFallbackClient(llm, gemini, logger)
		}
	}

	callMetrics := metrics.NewCallMetrics(nil)

	// Repositories and services
	authRepo := auth.NewPostgresRepository(pool)
	authService := auth.NewService(authRepo, cfg.JWTSecret, cfg.TokenExpiry, logger)
	authHandler := auth.NewHandler(authService, logger)

	agentsRepo := agents.NewPostgresRepository(pool)
	agentsHandler := agents.NewHandler(agentsRepo, logger)

	hub := ws.NewHub(logger)

	convStore := conversation.NewPostgresStore(pool)
	convService := conversation.NewService(conversation.ServiceConfig{
		Store:          convStore,
		Agents:         agentsRepo,
		LLM:            llm,
		Model:          cfg.LLMModel,
		WindowMessages: cfg.ContextWindowMessages,
		ReplyMaxTokens: cfg.ReplyMaxTokens,
		Redis:          redisClient,
		Events:         hub,
		Metrics:        callMetrics,
		Logger:         logger,
	})

	var leadNotifier conversation.LeadNotifier
	if sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sender != nil {
		leadNotifier = notify.NewLeadAlertService(sender, authRepo, logger)
	}

	summaryModel := cfg.SummaryModel
	if summaryModel == "" {
		summaryModel = cfg.LLMModel
	}
	summarizer := conversation.NewSummarizer(convStore, llm, summaryModel, leadNotifier, hub, callMetrics, logger)
	convHandler := conversation.NewHandler(convService, summarizer, logger)

	statsHandler := stats.NewHandler(stats.NewRepository(reportingDB), logger)

	wsHandler := ws.NewHandler(hub, authService, convService, wsOriginCheck(cfg.CORSAllowedOrigins), logger)

	r := router.New(&router.Config{
		Logger:              logger,
		AuthHandler:         authHandler,
		AgentsHandler:       agentsHandler,
		ConversationHandler: convHandler,
		StatsHandler:        statsHandler,
		WSHandler:           wsHandler,
		TokenVerifier:       authService,
		AdminEmail:          cfg.AdminEmail,
		MetricsHandler:      promhttp.Handler(),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		AuthRateLimit:       cfg.AuthRateLimit,
		AuthRateBurst:       cfg.AuthRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// wsOriginCheck allows websocket upgrades from the configured CORS origins.
// With no configured origins the gorilla same-host default applies.
func wsOriginCheck(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	allow := make(map[string]struct{}, len(origins))
	allowAny := false
	for _, o := range origins {
		if o == "*" {
			allowAny = true
			continue
		}
		allow[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if allowAny {
			return true
		}
		_, ok := allow[origin]
		return ok
	}
}
