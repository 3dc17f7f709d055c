package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"chronoguard/internal/domain"
	"chronoguard/internal/platform/server"
)

// mockowner emulates an owning service's read-by-id API so the guard's
// resolver can be exercised without the real platform running. Seeded IDs
// answer 200, everything else 404, with optional latency and failure
// injection for resilience testing.
func main() {
	addr := envOr("OWNER_ADDR", ":3002")
	name := envOr("OWNER_NAME", "mock-owner")
	baseDelay := envMillis("LATENCY_BASE", 0)
	jitter := envMillis("LATENCY_JITTER", 0)
	failRate := envFloat("FAIL_RATE", 0)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Seeded entities, e.g. SEED="events:1,2,3;periods:10,11;media:7"
	seed := envOr("SEED", "events:1,2,3;periods:1,2;media:1")
	known := parseSeed(seed)

	slog.Info("mock owner starting", "addr", addr, "name", name,
		"seed", seed, "latency_base", baseDelay, "latency_jitter", jitter, "fail_rate", failRate)

	mux := http.NewServeMux()

	for _, collection := range []string{"events", "periods", "media"} {
		mux.HandleFunc("GET /"+collection+"/{id}", func(w http.ResponseWriter, r *http.Request) {
			simulateWork(baseDelay, jitter)
			if failRate > 0 && rand.Float64() < failRate {
				writeError(w, http.StatusServiceUnavailable, "unavailable", "injected failure")
				return
			}

			id := r.PathValue("id")
			if _, ok := known[collection+"/"+id]; !ok {
				writeError(w, http.StatusNotFound, "not_found", collection+" "+id+" not found")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id":     id,
				"kind":   strings.TrimSuffix(collection, "s"),
				"source": name,
			})
		})
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": name})
	})

	srv := server.New(addr, mux)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
	}
}

// parseSeed expands "events:1,2;periods:3" into {"events/1", "events/2", "periods/3"}.
func parseSeed(seed string) map[string]struct{} {
	known := make(map[string]struct{})
	for _, group := range strings.Split(seed, ";") {
		collection, ids, ok := strings.Cut(group, ":")
		if !ok {
			continue
		}
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				known[strings.TrimSpace(collection)+"/"+id] = struct{}{}
			}
		}
	}
	return known
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(domain.ErrorResponse{Error: code, Message: msg})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envMillis reads a duration in milliseconds from an env var (e.g. "50" -> 50ms).
func envMillis(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// simulateWork sleeps for base + random(0, jitter) to mimic real backend processing.
func simulateWork(base, jitter time.Duration) {
	if base == 0 && jitter == 0 {
		return
	}
	delay := base
	if jitter > 0 {
		delay += time.Duration(rand.Int64N(int64(jitter)))
	}
	time.Sleep(delay)
}
