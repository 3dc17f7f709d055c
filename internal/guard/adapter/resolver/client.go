// Package resolver performs existence checks for foreign references against
// the services that own them. Every check carries a bounded deadline and a
// small retry budget; the outcome is always one of the VerificationResult
// variants, never an exception path.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"chronoguard/internal/domain"
	"chronoguard/internal/platform/telemetry"
)

const (
	defaultTimeout = 2 * time.Second
	retryWaitMin   = 50 * time.Millisecond
	retryWaitMax   = 500 * time.Millisecond
)

// Endpoint locates the read-by-id API for one entity kind. Path contains an
// {id} placeholder, e.g. "/events/{id}".
type Endpoint struct {
	BaseURL string
	Path    string
}

// Config holds resolver settings.
type Config struct {
	Endpoints map[domain.ResourceKind]Endpoint
	Timeout   time.Duration // per-attempt deadline
	Retries   int           // retry budget for transient failures, never for 404
	CacheTTL  time.Duration // positive-verdict cache; 0 disables
}

// Client resolves foreign references over HTTP.
type Client struct {
	rc        *resty.Client
	endpoints map[domain.ResourceKind]Endpoint
	cache     *ttlCache
	metrics   *telemetry.GuardMetrics
}

// New creates a resolver client. The metrics parameter is optional; pass nil
// to skip metric recording.
func New(cfg Config, m *telemetry.GuardMetrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	rc := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(retryWaitMin).
		SetRetryMaxWaitTime(retryWaitMax).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Transient failures only. A 404 is a definitive answer and a 4xx
			// will not improve on retry.
			if err != nil {
				return true
			}
			return r.StatusCode() >= http.StatusInternalServerError
		})

	var cache *ttlCache
	if cfg.CacheTTL > 0 {
		cache = newTTLCache(cfg.CacheTTL, time.Now)
	}

	return &Client{
		rc:        rc,
		endpoints: cfg.Endpoints,
		cache:     cache,
		metrics:   m,
	}
}

// Resolve checks whether ref exists in its owning service.
//
// HTTP 200 with a well-formed JSON object body maps to Confirmed, 404 to
// NotFound, 401/403 to Unauthorized, and everything else (network failure,
// timeout, 5xx after the retry budget, malformed or non-object body) to
// Unreachable. A response is never partially trusted: if the body is not a
// JSON object, the reference is not confirmed.
func (c *Client) Resolve(ctx context.Context, ref domain.ForeignReference) domain.VerificationResult {
	start := time.Now()
	res := c.resolve(ctx, ref)
	if c.metrics != nil {
		c.metrics.RecordResolution(ctx, string(ref.Kind), res.Outcome.String(), time.Since(start).Seconds())
	}
	return res
}

func (c *Client) resolve(ctx context.Context, ref domain.ForeignReference) domain.VerificationResult {
	ep, ok := c.endpoints[ref.Kind]
	if !ok {
		return domain.Unreachable(ref, fmt.Errorf("no endpoint configured for kind %q", ref.Kind))
	}

	if c.cache != nil {
		state := c.cache.lookup(ref)
		if c.metrics != nil {
			c.metrics.RecordResolverCache(ctx, state.String())
		}
		if state == cacheHit {
			return domain.Confirmed(ref)
		}
	}

	target := strings.TrimSuffix(ep.BaseURL, "/") +
		strings.Replace(ep.Path, "{id}", url.PathEscape(ref.ID), 1)

	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(target)
	if err != nil {
		return domain.Unreachable(ref, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var body map[string]any
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return domain.Unreachable(ref, fmt.Errorf("malformed response body: %w", err))
		}
		// A 200 with body `null` unmarshals cleanly into a nil map but names
		// no entity. It must not count as confirmation.
		if body == nil {
			return domain.Unreachable(ref, errors.New("response body is not a JSON object"))
		}
		if c.cache != nil {
			c.cache.store(ref)
		}
		return domain.Confirmed(ref)
	case http.StatusNotFound:
		return domain.NotFound(ref)
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.Unauthorized(ref, fmt.Errorf("owning service refused the check: %d", resp.StatusCode()))
	default:
		return domain.Unreachable(ref, fmt.Errorf("owning service returned %d", resp.StatusCode()))
	}
}
