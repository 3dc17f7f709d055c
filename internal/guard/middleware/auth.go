package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"chronoguard/internal/domain"
	"chronoguard/internal/guard"
	"chronoguard/internal/guard/token"
	"chronoguard/internal/platform/telemetry"
)

// Auth returns a middleware that validates JWT Bearer tokens.
//
// A request without an Authorization header proceeds unauthenticated: whether
// the action it attempts requires a principal is a policy decision made
// downstream, not a transport concern. A request that does present
// credentials must present valid ones — invalid, expired or malformed tokens
// are rejected here with a cause-specific error code, never silently treated
// as anonymous.
//
// The metrics parameter is optional; pass nil to skip metric recording.
func Auth(verifier *token.Verifier, m *telemetry.GuardMetrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr, ok := extractBearerToken(r)
			if !ok {
				if m != nil {
					m.RecordAuthValidation(r.Context(), "failure")
				}
				writeAuthError(w, "malformed_header", "malformed authorization header")
				return
			}

			principal, err := verifier.Verify(r.Context(), tokenStr)
			if err != nil {
				slog.Debug("auth validation failed", "error", err)
				if m != nil {
					m.RecordAuthValidation(r.Context(), "failure")
				}
				code, msg := authErrorCode(err)
				writeAuthError(w, code, msg)
				return
			}

			if m != nil {
				m.RecordAuthValidation(r.Context(), "success")
			}
			ctx := guard.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authErrorCode(err error) (code, msg string) {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "token_expired", "token has expired"
	case errors.Is(err, domain.ErrInvalidSignature):
		return "invalid_signature", "token signature verification failed"
	case errors.Is(err, domain.ErrMissingToken):
		return "missing_token", "no token provided"
	default:
		return "invalid_token", "invalid token"
	}
}

func extractBearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func writeAuthError(w http.ResponseWriter, errCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(domain.ErrorResponse{
		Error:   errCode,
		Message: msg,
	}); err != nil {
		slog.Error("encoding error response", "error", err)
	}
}
