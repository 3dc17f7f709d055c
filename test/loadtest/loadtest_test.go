package loadtest_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"

	"chronoguard/internal/domain"
	"chronoguard/internal/guard"
	"chronoguard/internal/guard/adapter/inmem"
	"chronoguard/internal/guard/adapter/proxy"
	"chronoguard/internal/guard/adapter/resolver"
	"chronoguard/internal/guard/middleware"
	"chronoguard/internal/guard/policy"
	"chronoguard/internal/guard/token"
	"chronoguard/internal/platform/server"
	"chronoguard/internal/platform/telemetry"
	"chronoguard/internal/testutil"
)

type testEnv struct {
	baseURL string
	token   string
}

type rlConfig struct {
	perIPRate  float64
	perIPBurst int
}

func setupTestEnv(t *testing.T, rl rlConfig) *testEnv {
	t.Helper()

	owner := httptest.NewServer(testutil.MockOwnerHandler("event/1", "period/1"))
	backend := httptest.NewServer(testutil.MockBackendHandler("events"))
	t.Cleanup(func() {
		owner.Close()
		backend.Close()
	})

	env := &testEnv{
		token: testutil.IssueToken(t, testutil.Secret, "loadtest-user", domain.RoleUser, 30*time.Minute),
	}

	addr := freeAddr(t)

	keys, err := token.NewStaticHMAC(testutil.Secret)
	if err != nil {
		t.Fatalf("NewStaticHMAC: %v", err)
	}
	verifier := token.NewVerifier(keys, nil)

	res := resolver.New(resolver.Config{
		Endpoints: map[domain.ResourceKind]resolver.Endpoint{
			domain.ResourceEvent:  {BaseURL: owner.URL, Path: "/events/{id}"},
			domain.ResourcePeriod: {BaseURL: owner.URL, Path: "/periods/{id}"},
		},
		Timeout:  time.Second,
		CacheTTL: 10 * time.Second,
	}, nil)

	gd := guard.New(policy.Default(), res, 2*time.Second, nil)
	router, err := proxy.NewRouter(proxy.Config{
		AuthURL: backend.URL, EventsURL: backend.URL,
		MediaURL: backend.URL, CommentsURL: backend.URL,
	}, gd, guard.DefaultRefPolicy(), nil)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	rateLimiter := inmem.NewRateLimiter(rl.perIPRate, rl.perIPBurst, time.Now)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	shutdown, _ := telemetry.Setup(context.Background(), "chronoguard-loadtest")
	t.Cleanup(func() { shutdown(context.Background()) })

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.MetricsHandler())
	mux.Handle("/", middleware.Chain(
		router,
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.Recovery,
		middleware.RateLimit(rateLimiter, nil),
		middleware.Auth(verifier, nil),
	))

	srv := server.New(addr, mux)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Run(ctx)

	env.baseURL = "http://" + addr
	waitForReady(t, env.baseURL+"/healthz")

	return env
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func waitForReady(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server did not become ready at %s", url)
}

func loadtestDuration() time.Duration {
	if d := os.Getenv("LOADTEST_DURATION"); d != "" {
		if dur, err := time.ParseDuration(d); err == nil {
			return dur
		}
	}
	if testing.Short() {
		return 2 * time.Second
	}
	return 5 * time.Second
}

func loadtestRate() int {
	if r := os.Getenv("LOADTEST_RATE"); r != "" {
		if rate, err := strconv.Atoi(r); err == nil {
			return rate
		}
	}
	if testing.Short() {
		return 50
	}
	return 100
}

func printReport(t *testing.T, name string, metrics *vegeta.Metrics) {
	t.Helper()
	t.Logf("\n=== %s ===", name)
	t.Logf("  Requests:    %d", metrics.Requests)
	t.Logf("  Rate:        %.1f req/s", metrics.Rate)
	t.Logf("  Throughput:  %.1f req/s", metrics.Throughput)
	t.Logf("  Latencies:   mean=%s p50=%s p95=%s p99=%s max=%s",
		metrics.Latencies.Mean, metrics.Latencies.P50, metrics.Latencies.P95,
		metrics.Latencies.P99, metrics.Latencies.Max)
	t.Logf("  Status Codes:")
	for code, count := range metrics.StatusCodes {
		t.Logf("    %s: %d", code, count)
	}
	t.Logf("  Success:     %.1f%%", metrics.Success*100)
}

func attack(t *testing.T, target vegeta.Target, freq int, duration time.Duration, name string) *vegeta.Metrics {
	t.Helper()
	targeter := vegeta.NewStaticTargeter(target)
	attacker := vegeta.NewAttacker()
	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: freq, Per: time.Second}, duration, name) {
		metrics.Add(res)
	}
	metrics.Close()
	return &metrics
}

func TestBaselinePublicRead(t *testing.T) {
	env := setupTestEnv(t, rlConfig{perIPRate: 10000, perIPBurst: 10000})

	metrics := attack(t, vegeta.Target{
		Method: http.MethodGet,
		URL:    env.baseURL + "/events/1",
	}, loadtestRate(), loadtestDuration(), "baseline-read")

	printReport(t, "Baseline Public Read", metrics)

	if metrics.Success < 0.99 {
		t.Errorf("expected >99%% success rate, got %.1f%%", metrics.Success*100)
	}
	if metrics.Latencies.P99 > 100*time.Millisecond {
		t.Errorf("P99 latency too high: %s", metrics.Latencies.P99)
	}
}

func TestGuardedCreateUnderLoad(t *testing.T) {
	env := setupTestEnv(t, rlConfig{perIPRate: 10000, perIPBurst: 10000})

	// Every request carries a reference to the same period; the positive
	// verdict cache keeps the owner from being hammered once per request.
	metrics := attack(t, vegeta.Target{
		Method: http.MethodPost,
		URL:    env.baseURL + "/events",
		Body:   []byte(`{"title":"load","period_id":"1"}`),
		Header: http.Header{
			"Authorization": []string{"Bearer " + env.token},
			"Content-Type":  []string{"application/json"},
		},
	}, loadtestRate(), loadtestDuration(), "guarded-create")

	printReport(t, "Guarded Create", metrics)

	if metrics.Success < 0.99 {
		t.Errorf("expected >99%% success rate, got %.1f%%", metrics.Success*100)
	}
}

func TestRateLimitBehavior(t *testing.T) {
	// Low per-IP rate+burst so rate limiting triggers at the attack rate
	env := setupTestEnv(t, rlConfig{perIPRate: 5, perIPBurst: 10})

	metrics := attack(t, vegeta.Target{
		Method: http.MethodGet,
		URL:    env.baseURL + "/events/1",
	}, loadtestRate(), loadtestDuration(), "rate-limit")

	printReport(t, "Rate Limit Behavior", metrics)

	// Should see a mix of 200s and 429s
	if metrics.StatusCodes["200"] == 0 {
		t.Error("expected some 200 responses (initial burst)")
	}
	if metrics.StatusCodes["429"] == 0 {
		t.Error("expected some 429 responses (rate limited)")
	}
}

func TestRejectionsUnderLoad(t *testing.T) {
	env := setupTestEnv(t, rlConfig{perIPRate: 10000, perIPBurst: 10000})

	// Unauthenticated writes are rejected by policy before any resolution,
	// so denials should stay cheap even at rate.
	metrics := attack(t, vegeta.Target{
		Method: http.MethodPost,
		URL:    env.baseURL + "/events",
		Body:   []byte(`{"title":"x"}`),
	}, loadtestRate(), loadtestDuration(), "rejections")

	printReport(t, "Unauthenticated Rejections", metrics)

	if uint64(metrics.StatusCodes["401"]) != metrics.Requests {
		t.Errorf("expected all requests rejected with 401, got %v", metrics.StatusCodes)
	}
	if metrics.Latencies.P99 > 100*time.Millisecond {
		t.Errorf("P99 latency too high for rejections: %s", metrics.Latencies.P99)
	}
}
