// Package token validates bearer tokens locally, without calling the issuing
// service. Verification is a pure function of the token string, the key
// material and the clock; each failure mode is a distinct domain error.
package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chronoguard/internal/domain"
)

// maxClockSkew is the leeway granted when validating exp, accounting for
// clock drift between the issuing service and this process.
const maxClockSkew = 30 * time.Second

// KeyProvider supplies the verification key for a token. Symmetric schemes
// ignore the key ID.
type KeyProvider interface {
	Key(ctx context.Context, kid string) (any, error)
	// Methods returns the JWT signing method names this provider's keys verify.
	Methods() []string
}

// StaticHMAC is a KeyProvider backed by a single shared HS256 secret, the
// token scheme the platform's auth service issues.
type StaticHMAC struct {
	secret []byte
}

// NewStaticHMAC creates a shared-secret provider. An empty secret is a
// configuration error and must abort startup.
func NewStaticHMAC(secret []byte) (*StaticHMAC, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty HMAC secret")
	}
	return &StaticHMAC{secret: secret}, nil
}

func (s *StaticHMAC) Key(_ context.Context, _ string) (any, error) {
	return s.secret, nil
}

func (s *StaticHMAC) Methods() []string {
	return []string{"HS256"}
}

// Verifier decodes and validates bearer tokens into Principals.
type Verifier struct {
	keys KeyProvider
	now  func() time.Time
}

// NewVerifier creates a Verifier. clock is injectable for deterministic
// testing; pass time.Now in production.
func NewVerifier(keys KeyProvider, clock func() time.Time) *Verifier {
	if clock == nil {
		clock = time.Now
	}
	return &Verifier{keys: keys, now: clock}
}

// Verify validates tokenStr and returns the principal it identifies.
//
// Failure modes are distinct: domain.ErrMissingToken for an absent token,
// domain.ErrTokenExpired when the expiry has passed on an otherwise valid
// token (expiry is checked with a 30s clock-skew leeway, so a token whose
// exp is within that window of the past still verifies),
// domain.ErrInvalidSignature when cryptographic verification fails
// (including disallowed signing methods), and domain.ErrInvalidToken for
// malformed tokens or claims.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (domain.Principal, error) {
	if tokenStr == "" {
		return domain.Principal{}, domain.ErrMissingToken
	}

	parsed, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods(v.keys.Methods()),
		jwt.WithLeeway(maxClockSkew),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return domain.Principal{}, fmt.Errorf("%w: %w", domain.ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return domain.Principal{}, fmt.Errorf("%w: %w", domain.ErrInvalidSignature, err)
		default:
			return domain.Principal{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
		}
	}

	return principalFromClaims(parsed.Claims)
}

func principalFromClaims(claims jwt.Claims) (domain.Principal, error) {
	mc, ok := claims.(jwt.MapClaims)
	if !ok {
		return domain.Principal{}, domain.ErrInvalidToken
	}

	id := subjectID(mc)
	if id == "" {
		return domain.Principal{}, fmt.Errorf("%w: no subject", domain.ErrInvalidToken)
	}

	roleStr, _ := mc["role"].(string)
	role := domain.Role(roleStr)
	if !role.Valid() {
		return domain.Principal{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidToken, roleStr)
	}

	p := domain.Principal{ID: id, Role: role}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}
	return p, nil
}

// subjectID accepts either a standard "sub" claim or the auth service's "id"
// claim, which it issues as a numeric user ID.
func subjectID(mc jwt.MapClaims) string {
	if sub, _ := mc["sub"].(string); sub != "" {
		return sub
	}
	switch id := mc["id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	default:
		return ""
	}
}
