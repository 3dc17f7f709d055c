package domain

import (
	"errors"
	"fmt"
)

// Authentication failures. Each is a distinct, user-visible condition; they
// all map to 401 at the HTTP boundary but carry different error codes.
var (
	ErrMissingToken     = errors.New("missing token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidToken     = errors.New("invalid token")
)

// ForbiddenError means the principal was authenticated (or the request was
// anonymous) but the policy table denied the action.
type ForbiddenError struct {
	Decision AuthorizationDecision
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Decision.Message
}

// InvalidReferenceError means a named foreign reference definitively does not
// exist in its owning service.
type InvalidReferenceError struct {
	Ref ForeignReference
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid reference: %s not found", e.Ref)
}

// DependencyUnavailableError means one or more references could not be
// confirmed for reasons other than definitive absence: the owning service was
// unreachable within budget, or refused the existence check. Callers may
// retry the whole request.
type DependencyUnavailableError struct {
	Results []VerificationResult
}

func (e *DependencyUnavailableError) Error() string {
	for _, res := range e.Results {
		if res.Cause != nil {
			return fmt.Sprintf("dependency unavailable: %s: %v", res.Ref, res.Cause)
		}
	}
	return "dependency unavailable"
}

// ErrorResponse is the standard JSON error envelope returned to clients.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}
