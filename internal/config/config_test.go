package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANTLER_ADDR", "")
	t.Setenv("PORT", "")

	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Fatalf("expected 7-day token TTL, got %v", cfg.TokenTTL)
	}
	if cfg.BcryptCost != 12 {
		t.Fatalf("expected bcrypt cost 12, got %d", cfg.BcryptCost)
	}
	if cfg.ValidateReplyTargets {
		t.Fatalf("reply-target validation must default to off")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ANTLER_ADDR", ":9999")
	t.Setenv("ANTLER_DB", "/tmp/test.db")
	t.Setenv("ANTLER_TOKEN_TTL", "1h")
	t.Setenv("ANTLER_DB_MAX_CONNS", "3")
	t.Setenv("ANTLER_VALIDATE_REPLY_TARGETS", "true")

	cfg := Load()
	if cfg.Addr != ":9999" || cfg.DBPath != "/tmp/test.db" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.TokenTTL != time.Hour || cfg.DBMaxConns != 3 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if !cfg.ValidateReplyTargets {
		t.Fatalf("expected reply-target validation enabled")
	}
}

func TestPortFallback(t *testing.T) {
	t.Setenv("ANTLER_ADDR", "")
	t.Setenv("PORT", "3000")
	if got := Load().Addr; got != ":3000" {
		t.Fatalf("expected PORT fallback :3000, got %q", got)
	}
}

func TestBadEnvValuesFallBack(t *testing.T) {
	t.Setenv("ANTLER_TOKEN_TTL", "soon")
	t.Setenv("ANTLER_DB_MAX_CONNS", "lots")
	cfg := Load()
	if cfg.TokenTTL != 7*24*time.Hour || cfg.DBMaxConns != 10 {
		t.Fatalf("bad values must fall back to defaults: %+v", cfg)
	}
}
