package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ShutdownFunc releases telemetry resources.
type ShutdownFunc func(ctx context.Context) error

// Setup initializes OpenTelemetry with a Prometheus exporter.
// Returns a shutdown function that must be called on exit.
func Setup(ctx context.Context, serviceName string) (ShutdownFunc, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// GuardMetrics holds all OTel instruments for the integrity gateway.
type GuardMetrics struct {
	httpRequestsTotal       otelmetric.Int64Counter
	httpRequestDuration     otelmetric.Float64Histogram
	authValidationsTotal    otelmetric.Int64Counter
	policyDecisionsTotal    otelmetric.Int64Counter
	resolutionsTotal        otelmetric.Int64Counter
	resolutionDuration      otelmetric.Float64Histogram
	guardDecisionsTotal     otelmetric.Int64Counter
	resolverCacheTotal      otelmetric.Int64Counter
	rateLimitDecisionsTotal otelmetric.Int64Counter
	proxyRequestsTotal      otelmetric.Int64Counter
	proxyDuration           otelmetric.Float64Histogram
}

// NewGuardMetrics creates and registers all guard metrics.
func NewGuardMetrics() (*GuardMetrics, error) {
	meter := otel.Meter("chronoguard")
	m := &GuardMetrics{}
	var err error

	latencyBuckets := otelmetric.WithExplicitBucketBoundaries(
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
	)

	if m.httpRequestsTotal, err = meter.Int64Counter("chronoguard_http_requests_total",
		otelmetric.WithDescription("Total HTTP requests")); err != nil {
		return nil, fmt.Errorf("creating http_requests_total: %w", err)
	}
	if m.httpRequestDuration, err = meter.Float64Histogram("chronoguard_http_request_duration_seconds",
		otelmetric.WithDescription("HTTP request duration"), latencyBuckets); err != nil {
		return nil, fmt.Errorf("creating http_request_duration: %w", err)
	}
	if m.authValidationsTotal, err = meter.Int64Counter("chronoguard_auth_validations_total",
		otelmetric.WithDescription("Total token validations")); err != nil {
		return nil, fmt.Errorf("creating auth_validations_total: %w", err)
	}
	if m.policyDecisionsTotal, err = meter.Int64Counter("chronoguard_policy_decisions_total",
		otelmetric.WithDescription("Total authorization policy decisions")); err != nil {
		return nil, fmt.Errorf("creating policy_decisions_total: %w", err)
	}
	if m.resolutionsTotal, err = meter.Int64Counter("chronoguard_resolutions_total",
		otelmetric.WithDescription("Total foreign reference resolutions")); err != nil {
		return nil, fmt.Errorf("creating resolutions_total: %w", err)
	}
	if m.resolutionDuration, err = meter.Float64Histogram("chronoguard_resolution_duration_seconds",
		otelmetric.WithDescription("Foreign reference resolution duration"), latencyBuckets); err != nil {
		return nil, fmt.Errorf("creating resolution_duration: %w", err)
	}
	if m.guardDecisionsTotal, err = meter.Int64Counter("chronoguard_guard_decisions_total",
		otelmetric.WithDescription("Total consistency guard decisions")); err != nil {
		return nil, fmt.Errorf("creating guard_decisions_total: %w", err)
	}
	if m.resolverCacheTotal, err = meter.Int64Counter("chronoguard_resolver_cache_total",
		otelmetric.WithDescription("Resolver cache lookups")); err != nil {
		return nil, fmt.Errorf("creating resolver_cache_total: %w", err)
	}
	if m.rateLimitDecisionsTotal, err = meter.Int64Counter("chronoguard_ratelimit_decisions_total",
		otelmetric.WithDescription("Total rate limit decisions")); err != nil {
		return nil, fmt.Errorf("creating ratelimit_decisions_total: %w", err)
	}
	if m.proxyRequestsTotal, err = meter.Int64Counter("chronoguard_proxy_requests_total",
		otelmetric.WithDescription("Total proxied requests")); err != nil {
		return nil, fmt.Errorf("creating proxy_requests_total: %w", err)
	}
	if m.proxyDuration, err = meter.Float64Histogram("chronoguard_proxy_duration_seconds",
		otelmetric.WithDescription("Proxied request duration"), latencyBuckets); err != nil {
		return nil, fmt.Errorf("creating proxy_duration: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request metric.
func (m *GuardMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, durationSec float64) {
	attrs := otelmetric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(status),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, durationSec, attrs)
}

// RecordAuthValidation records a token validation result.
func (m *GuardMetrics) RecordAuthValidation(ctx context.Context, result string) {
	m.authValidationsTotal.Add(ctx, 1, otelmetric.WithAttributes(resultAttr(result)))
}

// RecordPolicyDecision records an authorization policy decision.
func (m *GuardMetrics) RecordPolicyDecision(ctx context.Context, resource, action string, allowed bool) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	m.policyDecisionsTotal.Add(ctx, 1, otelmetric.WithAttributes(
		resourceAttr(resource),
		actionAttr(action),
		resultAttr(result),
	))
}

// RecordResolution records a foreign reference resolution and its duration.
func (m *GuardMetrics) RecordResolution(ctx context.Context, kind, outcome string, durationSec float64) {
	attrs := otelmetric.WithAttributes(kindAttr(kind), outcomeAttr(outcome))
	m.resolutionsTotal.Add(ctx, 1, attrs)
	m.resolutionDuration.Record(ctx, durationSec, otelmetric.WithAttributes(kindAttr(kind)))
}

// RecordGuardDecision records the terminal outcome of one guard check.
func (m *GuardMetrics) RecordGuardDecision(ctx context.Context, result string) {
	m.guardDecisionsTotal.Add(ctx, 1, otelmetric.WithAttributes(resultAttr(result)))
}

// RecordResolverCache records a resolver cache lookup (hit, miss, expired).
func (m *GuardMetrics) RecordResolverCache(ctx context.Context, result string) {
	m.resolverCacheTotal.Add(ctx, 1, otelmetric.WithAttributes(resultAttr(result)))
}

// RecordRateLimitDecision records a rate limit decision.
func (m *GuardMetrics) RecordRateLimitDecision(ctx context.Context, layer, result string) {
	m.rateLimitDecisionsTotal.Add(ctx, 1, otelmetric.WithAttributes(
		layerAttr(layer),
		resultAttr(result),
	))
}

// RecordProxyRequest records a request forwarded to a backend service.
func (m *GuardMetrics) RecordProxyRequest(ctx context.Context, backend string, status int, durationSec float64) {
	attrs := otelmetric.WithAttributes(
		backendAttr(backend),
		statusAttr(status),
	)
	m.proxyRequestsTotal.Add(ctx, 1, attrs)
	m.proxyDuration.Record(ctx, durationSec, attrs)
}
