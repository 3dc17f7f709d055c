package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chronoguard/internal/domain"
	"chronoguard/internal/guard"
	"chronoguard/internal/guard/adapter/inmem"
	"chronoguard/internal/guard/adapter/jwks"
	"chronoguard/internal/guard/adapter/proxy"
	"chronoguard/internal/guard/adapter/resolver"
	"chronoguard/internal/guard/middleware"
	"chronoguard/internal/guard/policy"
	"chronoguard/internal/guard/token"
	"chronoguard/internal/platform/config"
	"chronoguard/internal/platform/server"
	"chronoguard/internal/platform/telemetry"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Logging
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	shutdown, err := telemetry.Setup(context.Background(), "chronoguard")
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}

	metrics, err := telemetry.NewGuardMetrics()
	if err != nil {
		slog.Error("metrics initialization failed", "error", err)
		os.Exit(1)
	}

	// Token verification
	var keys token.KeyProvider
	switch cfg.TokenScheme {
	case config.SchemeHMAC:
		keys, err = token.NewStaticHMAC([]byte(cfg.JWTSecret))
		if err != nil {
			slog.Error("key provider initialization failed", "error", err)
			os.Exit(1)
		}
	case config.SchemeJWKS:
		keys = jwks.NewClient(cfg.JWKSEndpoint, cfg.JWKSCacheTTL)
	}
	verifier := token.NewVerifier(keys, time.Now)

	// Reference resolution
	res := resolver.New(resolver.Config{
		Endpoints: map[domain.ResourceKind]resolver.Endpoint{
			domain.ResourceEvent:  {BaseURL: cfg.EventsURL, Path: "/events/{id}"},
			domain.ResourcePeriod: {BaseURL: cfg.EventsURL, Path: "/periods/{id}"},
			domain.ResourceMedia:  {BaseURL: cfg.MediaURL, Path: "/media/{id}"},
		},
		Timeout:  cfg.Resolver.Timeout,
		Retries:  cfg.Resolver.Retries,
		CacheTTL: cfg.Resolver.CacheTTL,
	}, metrics)

	gd := guard.New(policy.Default(), res, cfg.Resolver.Budget, metrics)

	// Rate limiter
	rl := inmem.NewRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst, time.Now)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()

	// Router
	router, err := proxy.NewRouter(proxy.Config{
		AuthURL:     cfg.AuthURL,
		EventsURL:   cfg.EventsURL,
		MediaURL:    cfg.MediaURL,
		CommentsURL: cfg.CommentsURL,
	}, gd, guard.DefaultRefPolicy(), metrics)
	if err != nil {
		slog.Error("router initialization failed", "error", err)
		os.Exit(1)
	}

	// Assemble middleware chain
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.MetricsHandler())
	mux.Handle("/", middleware.Chain(
		router,
		middleware.Metrics(metrics),
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.Recovery,
		middleware.MaxBodySize(cfg.MaxBody),
		middleware.RateLimit(rl, metrics),
		middleware.Auth(verifier, metrics),
	))

	srv := server.New(cfg.GuardAddr, mux)

	slog.Info("guard starting",
		"addr", cfg.GuardAddr,
		"token_scheme", cfg.TokenScheme,
		"auth_url", cfg.AuthURL,
		"events_url", cfg.EventsURL,
		"media_url", cfg.MediaURL,
		"comments_url", cfg.CommentsURL,
		"resolve_budget", cfg.Resolver.Budget,
	)

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
	}

	if err := shutdown(context.Background()); err != nil {
		slog.Error("telemetry shutdown error", "error", err)
	}
}
