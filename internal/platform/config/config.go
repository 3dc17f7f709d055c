package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Token scheme names accepted in TOKEN_SCHEME.
const (
	SchemeHMAC = "hmac"
	SchemeJWKS = "jwks"
)

// Config holds all configuration for the guard system.
type Config struct {
	GuardAddr   string
	AuthURL     string // auth service proxy target (e.g. http://auth:3001)
	EventsURL   string // owns events and periods (e.g. http://events:3002)
	MediaURL    string // media service proxy target (e.g. http://media:3003)
	CommentsURL string // comments service proxy target (e.g. http://comments:3004)

	TokenScheme  string // "hmac" or "jwks"
	JWTSecret    string // required for the hmac scheme
	JWKSEndpoint string
	JWKSCacheTTL time.Duration

	Resolver  ResolverConfig
	LogLevel  string
	MaxBody   int64
	RateLimit RateLimitConfig
}

// ResolverConfig bounds outbound existence checks.
type ResolverConfig struct {
	Timeout  time.Duration // per-attempt timeout
	Retries  int           // additional attempts after the first
	Budget   time.Duration // aggregate deadline across all refs of one request
	CacheTTL time.Duration // positive-verdict cache; 0 disables
}

// RateLimitConfig holds token bucket parameters for per-IP rate limiting.
type RateLimitConfig struct {
	Rate  float64
	Burst int
}

// Load reads configuration from environment variables, falling back to defaults.
func Load() Config {
	return Config{
		GuardAddr:   envOr("GUARD_ADDR", ":8080"),
		AuthURL:     envOr("AUTH_URL", "http://localhost:3001"),
		EventsURL:   envOr("EVENTS_URL", "http://localhost:3002"),
		MediaURL:    envOr("MEDIA_URL", "http://localhost:3003"),
		CommentsURL: envOr("COMMENTS_URL", "http://localhost:3004"),

		TokenScheme:  envOr("TOKEN_SCHEME", SchemeHMAC),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWKSEndpoint: envOr("JWKS_ENDPOINT", "http://localhost:3001/.well-known/jwks.json"),
		JWKSCacheTTL: envDuration("JWKS_CACHE_TTL", 5*time.Minute),

		Resolver: ResolverConfig{
			Timeout:  envDuration("RESOLVE_TIMEOUT", 2*time.Second),
			Retries:  envInt("RESOLVE_RETRIES", 2),
			Budget:   envDuration("RESOLVE_BUDGET", 5*time.Second),
			CacheTTL: envDuration("RESOLVE_CACHE_TTL", 30*time.Second),
		},
		LogLevel: envOr("LOG_LEVEL", "info"),
		MaxBody:  int64(envInt("MAX_BODY_BYTES", 1<<20)),
		RateLimit: RateLimitConfig{
			Rate:  envFloat("RATE_LIMIT_RATE", 100),
			Burst: envInt("RATE_LIMIT_BURST", 20),
		},
	}
}

// Validate rejects configurations the guard must not start with. A missing
// HMAC secret would make every signature check pass trivially forgeable
// tokens, so it fails here rather than at the first request.
func (c Config) Validate() error {
	switch c.TokenScheme {
	case SchemeHMAC:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when TOKEN_SCHEME is %q", SchemeHMAC)
		}
	case SchemeJWKS:
		if c.JWKSEndpoint == "" {
			return fmt.Errorf("JWKS_ENDPOINT is required when TOKEN_SCHEME is %q", SchemeJWKS)
		}
	default:
		return fmt.Errorf("unknown TOKEN_SCHEME %q", c.TokenScheme)
	}
	if c.Resolver.Timeout <= 0 || c.Resolver.Budget <= 0 {
		return fmt.Errorf("resolver timeout and budget must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("invalid float env var, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}
		return f
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}
		return d
	}
	return fallback
}
