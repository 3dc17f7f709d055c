package domain

// DenyReason distinguishes why an authorization decision denied a request.
// Unauthenticated maps to 401 at the HTTP boundary, insufficient role to 403.
type DenyReason int

const (
	DenyNone DenyReason = iota
	DenyUnauthenticated
	DenyInsufficientRole
)

func (r DenyReason) String() string {
	switch r {
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyInsufficientRole:
		return "insufficient role"
	default:
		return "none"
	}
}

// AuthorizationDecision is the outcome of evaluating (principal, resource,
// action) against the policy table.
type AuthorizationDecision struct {
	Allowed bool
	Reason  DenyReason
	Message string
}

// Allow returns a permitting decision.
func Allow() AuthorizationDecision {
	return AuthorizationDecision{Allowed: true}
}

// Deny returns a denying decision carrying a human-readable message.
func Deny(reason DenyReason, msg string) AuthorizationDecision {
	return AuthorizationDecision{Reason: reason, Message: msg}
}
