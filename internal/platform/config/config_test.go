package config_test

import (
	"testing"
	"time"

	"chronoguard/internal/platform/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()

	if cfg.GuardAddr != ":8080" {
		t.Errorf("expected default guard addr :8080, got %q", cfg.GuardAddr)
	}
	if cfg.AuthURL != "http://localhost:3001" {
		t.Errorf("expected default auth URL, got %q", cfg.AuthURL)
	}
	if cfg.EventsURL != "http://localhost:3002" {
		t.Errorf("expected default events URL, got %q", cfg.EventsURL)
	}
	if cfg.TokenScheme != config.SchemeHMAC {
		t.Errorf("expected default scheme hmac, got %q", cfg.TokenScheme)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %q", cfg.LogLevel)
	}
	if cfg.Resolver.Timeout != 2*time.Second {
		t.Errorf("expected default resolve timeout 2s, got %v", cfg.Resolver.Timeout)
	}
	if cfg.Resolver.Retries != 2 {
		t.Errorf("expected default retries 2, got %d", cfg.Resolver.Retries)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GUARD_ADDR", ":9090")
	t.Setenv("EVENTS_URL", "http://events:9092")
	t.Setenv("COMMENTS_URL", "http://comments:9094")
	t.Setenv("TOKEN_SCHEME", "jwks")
	t.Setenv("JWKS_ENDPOINT", "http://custom:9091/.well-known/jwks.json")
	t.Setenv("RESOLVE_BUDGET", "10s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := config.Load()

	if cfg.GuardAddr != ":9090" {
		t.Errorf("expected :9090, got %q", cfg.GuardAddr)
	}
	if cfg.EventsURL != "http://events:9092" {
		t.Errorf("expected events URL, got %q", cfg.EventsURL)
	}
	if cfg.CommentsURL != "http://comments:9094" {
		t.Errorf("expected comments URL, got %q", cfg.CommentsURL)
	}
	if cfg.TokenScheme != config.SchemeJWKS {
		t.Errorf("expected jwks scheme, got %q", cfg.TokenScheme)
	}
	if cfg.JWKSEndpoint != "http://custom:9091/.well-known/jwks.json" {
		t.Errorf("expected custom JWKS endpoint, got %q", cfg.JWKSEndpoint)
	}
	if cfg.Resolver.Budget != 10*time.Second {
		t.Errorf("expected 10s budget, got %v", cfg.Resolver.Budget)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected 'debug', got %q", cfg.LogLevel)
	}
}

func TestValidateRequiresSecretForHMAC(t *testing.T) {
	cfg := config.Load()
	cfg.TokenScheme = config.SchemeHMAC
	cfg.JWTSecret = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for hmac scheme without secret")
	}

	cfg.JWTSecret = "shhh"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsUnknownScheme(t *testing.T) {
	cfg := config.Load()
	cfg.TokenScheme = "macaroon"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown token scheme")
	}
}

func TestRateLimitDefaults(t *testing.T) {
	cfg := config.Load()

	if cfg.RateLimit.Rate != 100 {
		t.Errorf("expected rate 100, got %f", cfg.RateLimit.Rate)
	}
	if cfg.RateLimit.Burst != 20 {
		t.Errorf("expected burst 20, got %d", cfg.RateLimit.Burst)
	}
}
