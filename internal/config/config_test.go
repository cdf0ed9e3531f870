package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CONTEXT_WINDOW_MESSAGES", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.ContextWindowMessages != 10 {
		t.Fatalf("expected default window of 10 messages, got %d", cfg.ContextWindowMessages)
	}
	if cfg.TokenExpiry != 24*time.Hour {
		t.Fatalf("expected default token expiry, got %s", cfg.TokenExpiry)
	}
	if cfg.LLMTimeout != 30*time.Second {
		t.Fatalf("expected default llm timeout, got %s", cfg.LLMTimeout)
	}
	if cfg.LLMModel != "llama-3.3-70b-versatile" {
		t.Fatalf("unexpected default model %s", cfg.LLMModel)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("expected no default cors origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TOKEN_EXPIRY", "12h")
	t.Setenv("CONTEXT_WINDOW_MESSAGES", "6")
	t.Setenv("LLM_TIMEOUT", "10s")
	t.Setenv("AUTH_RATE_LIMIT", "0.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.JWTSecret != "s3cret" {
		t.Fatalf("expected jwt secret override")
	}
	if cfg.TokenExpiry != 12*time.Hour {
		t.Fatalf("expected token expiry override, got %s", cfg.TokenExpiry)
	}
	if cfg.ContextWindowMessages != 6 {
		t.Fatalf("expected window override, got %d", cfg.ContextWindowMessages)
	}
	if cfg.LLMTimeout != 10*time.Second {
		t.Fatalf("expected llm timeout override, got %s", cfg.LLMTimeout)
	}
	if cfg.AuthRateLimit != 0.5 {
		t.Fatalf("expected rate limit override, got %f", cfg.AuthRateLimit)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("expected parsed cors origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("CONTEXT_WINDOW_MESSAGES", "ten")
	t.Setenv("TOKEN_EXPIRY", "soon")
	cfg := Load()
	if cfg.ContextWindowMessages != 10 {
		t.Fatalf("expected fallback to default window, got %d", cfg.ContextWindowMessages)
	}
	if cfg.TokenExpiry != 24*time.Hour {
		t.Fatalf("expected fallback token expiry, got %s", cfg.TokenExpiry)
	}
}
