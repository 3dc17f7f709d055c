package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chronoguard/internal/domain"
)

// Secret is the shared HS256 secret used across tests.
var Secret = []byte("test-secret-test-secret-test-secret")

// IssueToken creates a signed HS256 JWT in the shape the platform's auth
// service issues. A negative ttl produces an already-expired token.
func IssueToken(t *testing.T, secret []byte, id string, role domain.Role, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"id":   id,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// GenerateTestKeyPair generates an RSA key pair for the JWKS token scheme.
// Returns (keyID, privateKey, publicKey).
func GenerateTestKeyPair(t *testing.T) (string, *rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}
	kid := fmt.Sprintf("test-key-%d", time.Now().UnixNano())
	return kid, priv, &priv.PublicKey
}

// IssueTokenRS256 creates a signed RS256 JWT carrying the same claims as
// IssueToken, for gateways configured with the JWKS scheme.
func IssueTokenRS256(t *testing.T, kid string, priv *rsa.PrivateKey, id string, role domain.Role, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"id":   id,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(priv)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// MockJWKSHandler returns an http.Handler that serves a JWKS response
// containing the given public key.
func MockJWKSHandler(kid string, pub *rsa.PublicKey) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwks := map[string]any{
			"keys": []map[string]any{
				{
					"kty": "RSA",
					"alg": "RS256",
					"use": "sig",
					"kid": kid,
					"n":   base64URLEncode(pub.N.Bytes()),
					"e":   base64URLEncode(big.NewInt(int64(pub.E)).Bytes()),
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jwks)
	})
}

// MockOwnerHandler returns an http.Handler emulating an owning service's
// read-by-id API: GET /<kind>s/<id> answers 200 with a body for IDs in
// existing, 404 otherwise. existing keys are "kind/id" strings.
func MockOwnerHandler(existing ...string) http.Handler {
	known := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		known[e] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		kind := strings.TrimSuffix(parts[0], "s")
		key := kind + "/" + parts[1]
		if _, ok := known[key]; !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(domain.ErrorResponse{
				Error:   "not_found",
				Message: fmt.Sprintf("%s with ID %s not found", kind, parts[1]),
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": parts[1], "kind": kind})
	})
}

// MockBackendHandler returns an http.Handler that echoes request details.
// Used to test that the gateway forwards requests with principal headers.
func MockBackendHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"backend":        name,
			"method":         r.Method,
			"path":           r.URL.Path,
			"principal_id":   r.Header.Get("X-Principal-ID"),
			"principal_role": r.Header.Get("X-Principal-Role"),
			"request_id":     r.Header.Get("X-Request-ID"),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
}

func base64URLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
