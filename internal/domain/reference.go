package domain

// ResourceKind identifies an entity kind owned by one of the platform services.
type ResourceKind string

const (
	ResourceEvent   ResourceKind = "event"
	ResourcePeriod  ResourceKind = "period"
	ResourceMedia   ResourceKind = "media"
	ResourceComment ResourceKind = "comment"
)

// Action is an operation a request performs on a resource kind.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
	ActionRead    Action = "read"
	ActionList    Action = "list"
)

// ForeignReference is a pointer from a local entity to an entity owned by
// another service (an event's period, a media item's event, a comment's
// event). A mutation must not commit while pointing at a reference that
// could not be confirmed.
type ForeignReference struct {
	Kind ResourceKind
	ID   string
}

func (ref ForeignReference) String() string {
	return string(ref.Kind) + "/" + ref.ID
}

// Outcome classifies the result of checking a foreign reference or credential.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeConfirmed
	OutcomeNotFound
	OutcomeUnreachable
	OutcomeUnauthorized
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// VerificationResult is the outcome of checking one ForeignReference against
// its owning service. Cause is set for OutcomeUnreachable and
// OutcomeUnauthorized.
type VerificationResult struct {
	Ref     ForeignReference
	Outcome Outcome
	Cause   error
}

// Confirmed reports a reference that the owning service confirmed to exist.
func Confirmed(ref ForeignReference) VerificationResult {
	return VerificationResult{Ref: ref, Outcome: OutcomeConfirmed}
}

// NotFound reports a reference the owning service definitively does not hold.
func NotFound(ref ForeignReference) VerificationResult {
	return VerificationResult{Ref: ref, Outcome: OutcomeNotFound}
}

// Unreachable reports a reference whose owning service could not be consulted
// within budget.
func Unreachable(ref ForeignReference, cause error) VerificationResult {
	return VerificationResult{Ref: ref, Outcome: OutcomeUnreachable, Cause: cause}
}

// Unauthorized reports a reference whose owning service refused the existence
// check itself (401 or 403). The service was reachable but the check proves
// nothing about the entity, so the mutation cannot proceed on it.
func Unauthorized(ref ForeignReference, cause error) VerificationResult {
	return VerificationResult{Ref: ref, Outcome: OutcomeUnauthorized, Cause: cause}
}
