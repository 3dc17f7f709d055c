// Package proxy routes requests to the platform's backend services, gating
// every mutation behind the consistency guard. It is the single place where
// guard errors become HTTP status codes, so 401 vs 403 vs 422 vs 502 mean the
// same thing for every service.
package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"chronoguard/internal/domain"
	"chronoguard/internal/guard"
	"chronoguard/internal/platform/telemetry"
)

// Config holds the backend base URLs the router forwards to.
type Config struct {
	AuthURL     string
	EventsURL   string // owns both events and periods
	MediaURL    string
	CommentsURL string
}

// route maps a path prefix to the backend owning one resource kind.
type route struct {
	kind       domain.ResourceKind
	prefix     string
	backend    string // metrics label
	backendURL *url.URL
}

// Router dispatches requests to backend services after guard checks.
type Router struct {
	mux     *http.ServeMux
	gd      *guard.Guard
	refs    guard.RefPolicy
	metrics *telemetry.GuardMetrics
}

// NewRouter creates a router. refs declares which body fields carry foreign
// references per resource kind. The metrics parameter is optional; pass nil
// to skip metric recording.
func NewRouter(cfg Config, gd *guard.Guard, refs guard.RefPolicy, m *telemetry.GuardMetrics) (*Router, error) {
	authURL, err := url.Parse(cfg.AuthURL)
	if err != nil {
		return nil, fmt.Errorf("parse auth URL: %w", err)
	}
	eventsURL, err := url.Parse(cfg.EventsURL)
	if err != nil {
		return nil, fmt.Errorf("parse events URL: %w", err)
	}
	mediaURL, err := url.Parse(cfg.MediaURL)
	if err != nil {
		return nil, fmt.Errorf("parse media URL: %w", err)
	}
	commentsURL, err := url.Parse(cfg.CommentsURL)
	if err != nil {
		return nil, fmt.Errorf("parse comments URL: %w", err)
	}

	r := &Router{
		mux:     http.NewServeMux(),
		gd:      gd,
		refs:    refs,
		metrics: m,
	}

	// Health check endpoints
	r.mux.HandleFunc("GET /healthz", r.healthz)
	r.mux.HandleFunc("GET /readyz", r.readyz)

	// Auth routes are pass-through: token issuance and account management
	// belong to the auth service, the gateway only consumes tokens.
	authHandler := r.makePassthroughHandler("auth", authURL)
	r.mux.HandleFunc("/auth/{rest...}", authHandler)
	r.mux.HandleFunc("/auth", authHandler)

	routes := []route{
		{kind: domain.ResourceEvent, prefix: "/events", backend: "events", backendURL: eventsURL},
		{kind: domain.ResourcePeriod, prefix: "/periods", backend: "events", backendURL: eventsURL},
		{kind: domain.ResourceMedia, prefix: "/media", backend: "media", backendURL: mediaURL},
		{kind: domain.ResourceComment, prefix: "/comments", backend: "comments", backendURL: commentsURL},
	}
	for _, rt := range routes {
		r.mux.HandleFunc(rt.prefix+"/{rest...}", r.makeHandler(rt))
		r.mux.HandleFunc(rt.prefix, r.makeHandler(rt))
	}

	return r, nil
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) makeHandler(rt route) http.HandlerFunc {
	rp := r.reverseProxy(rt.backendURL)

	return func(w http.ResponseWriter, req *http.Request) {
		action, ok := deriveAction(req.Method, rt.prefix, req.URL.Path)
		if !ok {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not supported")
			return
		}

		var principal *domain.Principal
		if p, ok := guard.PrincipalFromContext(req.Context()); ok {
			principal = &p
		}

		var refs []domain.ForeignReference
		if action == domain.ActionCreate || action == domain.ActionUpdate {
			body, err := io.ReadAll(req.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "bad_request", "reading request body")
				return
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			refs, err = r.refs.Extract(rt.kind, body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "bad_request", err.Error())
				return
			}
		}

		if err := r.gd.Check(req.Context(), principal, rt.kind, action, refs); err != nil {
			writeGuardError(w, err)
			return
		}

		start := time.Now()
		sw := &guard.StatusWriter{ResponseWriter: w, Code: http.StatusOK}
		rp.ServeHTTP(sw, req)

		if r.metrics != nil {
			r.metrics.RecordProxyRequest(req.Context(), rt.backend, sw.Code, time.Since(start).Seconds())
		}
	}
}

// makePassthroughHandler forwards without guard checks.
func (r *Router) makePassthroughHandler(backend string, backendURL *url.URL) http.HandlerFunc {
	rp := r.reverseProxy(backendURL)

	return func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &guard.StatusWriter{ResponseWriter: w, Code: http.StatusOK}
		rp.ServeHTTP(sw, req)

		if r.metrics != nil {
			r.metrics.RecordProxyRequest(req.Context(), backend, sw.Code, time.Since(start).Seconds())
		}
	}
}

func (r *Router) reverseProxy(backendURL *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = backendURL.Scheme
			req.URL.Host = backendURL.Host
			req.Host = backendURL.Host

			// Strip Authorization — backends trust principal headers
			req.Header.Del("Authorization")

			// Inject principal headers from context
			if principal, ok := guard.PrincipalFromContext(req.Context()); ok {
				req.Header.Set("X-Principal-ID", principal.ID)
				req.Header.Set("X-Principal-Role", string(principal.Role))
			}

			// Propagate request ID
			if reqID := guard.RequestIDFromContext(req.Context()); reqID != "" {
				req.Header.Set("X-Request-ID", reqID)
			}
		},
	}
}

// deriveAction maps method and path shape onto the policy table's actions.
// PUT /comments/{id}/approve is the comment moderation endpoint; everything
// else follows the usual REST conventions.
func deriveAction(method, prefix, path string) (domain.Action, bool) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")

	switch method {
	case http.MethodGet, http.MethodHead:
		if rest == "" || rest == "pending" {
			return domain.ActionList, true
		}
		return domain.ActionRead, true
	case http.MethodPost:
		return domain.ActionCreate, true
	case http.MethodPut, http.MethodPatch:
		if strings.HasSuffix(rest, "/approve") {
			return domain.ActionApprove, true
		}
		return domain.ActionUpdate, true
	case http.MethodDelete:
		return domain.ActionDelete, true
	default:
		return "", false
	}
}

// writeGuardError maps guard failures onto the uniform status code contract:
// 401 for unauthenticated, 403 for insufficient role, 422 for a reference
// that does not exist, 502 for a dependency that could not be consulted.
func writeGuardError(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *domain.ForbiddenError:
		if e.Decision.Reason == domain.DenyUnauthenticated {
			writeError(w, http.StatusUnauthorized, "unauthorized", e.Decision.Message)
			return
		}
		writeError(w, http.StatusForbidden, "forbidden", e.Decision.Message)
	case *domain.InvalidReferenceError:
		writeError(w, http.StatusUnprocessableEntity, "invalid_reference", e.Error())
	case *domain.DependencyUnavailableError:
		writeError(w, http.StatusBadGateway, "dependency_unavailable", e.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "guard check failed")
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(domain.ErrorResponse{
		Error:   code,
		Message: msg,
	}); err != nil {
		slog.Error("encoding error response", "error", err)
	}
}

func (r *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		slog.Error("encoding healthz response", "error", err)
	}
}

func (r *Router) readyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ready"}); err != nil {
		slog.Error("encoding readyz response", "error", err)
	}
}
