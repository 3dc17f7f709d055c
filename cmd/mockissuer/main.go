package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chronoguard/internal/domain"
	"chronoguard/internal/platform/config"
	"chronoguard/internal/platform/server"
)

// mockissuer stands in for the platform's auth service during local
// development: it issues tokens in the same claim shape ({id, role, iat, exp})
// and, when configured for the jwks scheme, publishes its verification key.
func main() {
	addr := envOr("ISSUER_ADDR", ":3001")
	scheme := envOr("TOKEN_SCHEME", config.SchemeHMAC)
	secret := []byte(envOr("JWT_SECRET", "dev-secret"))
	ttl := 24 * time.Hour

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var priv *rsa.PrivateKey
	var kid string
	if scheme == config.SchemeJWKS {
		var err error
		priv, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			slog.Error("generating RSA key", "error", err)
			os.Exit(1)
		}
		kid = fmt.Sprintf("mock-key-%d", time.Now().Unix())
	}

	// One seeded account per role, password "password".
	users := map[string]domain.Role{}
	for _, role := range domain.Roles {
		users[string(role)+"@example.com"] = role
	}

	slog.Info("mock issuer starting", "addr", addr, "scheme", scheme, "kid", kid,
		"users", "user@example.com .. researcher@example.com, password: password")

	mux := http.NewServeMux()

	if priv != nil {
		mux.HandleFunc("GET /.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
			pub := &priv.PublicKey
			jwks := map[string]any{
				"keys": []map[string]any{
					{
						"kty": "RSA",
						"alg": "RS256",
						"use": "sig",
						"kid": kid,
						"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
						"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
					},
				},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(jwks)
		})
	}

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}

		role, ok := users[req.Email]
		if !ok || req.Password != "password" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}

		now := time.Now()
		claims := jwt.MapClaims{
			"id":   req.Email,
			"role": string(role),
			"iat":  now.Unix(),
			"exp":  now.Add(ttl).Unix(),
		}

		var signed string
		var err error
		if priv != nil {
			tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
			tok.Header["kid"] = kid
			signed, err = tok.SignedString(priv)
		} else {
			signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to sign token")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"token": signed,
			"user":  map[string]string{"id": req.Email, "role": string(role)},
		})
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": "mock-issuer"})
	})

	srv := server.New(addr, mux)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
	}
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
