package guard

import (
	"context"
	"sync"
	"time"

	"chronoguard/internal/domain"
	"chronoguard/internal/platform/telemetry"
)

// Guard gates mutating requests: it authorizes the principal against the
// policy table, then confirms every foreign reference the mutation introduces.
// It never mutates anything itself and never retries a whole mutation; it is
// consulted by the boundary layer immediately before a write is forwarded.
type Guard struct {
	policy   PolicyEvaluator
	resolver Resolver
	budget   time.Duration
	metrics  *telemetry.GuardMetrics
}

// New creates a Guard. budget is the aggregate deadline for the resolve step
// of a single Check call, covering all concurrent reference checks including
// their retries. The metrics parameter is optional; pass nil to skip metric
// recording.
func New(policy PolicyEvaluator, resolver Resolver, budget time.Duration, m *telemetry.GuardMetrics) *Guard {
	return &Guard{
		policy:   policy,
		resolver: resolver,
		budget:   budget,
		metrics:  m,
	}
}

// Check authorizes and validates a mutation. A nil principal means the
// request is unauthenticated. The sequence is fixed: authorize first, so a
// role-denied request performs no network calls; then resolve every reference
// concurrently under the aggregate budget.
//
// Returns nil when the mutation may proceed, *domain.ForbiddenError on policy
// denial, *domain.InvalidReferenceError when a reference definitively does
// not exist (this takes precedence over unreachable dependencies), and
// *domain.DependencyUnavailableError when an owning service could not be
// consulted within budget.
func (g *Guard) Check(ctx context.Context, p *domain.Principal, kind domain.ResourceKind, action domain.Action, refs []domain.ForeignReference) error {
	dec := g.policy.Evaluate(p, kind, action)
	if g.metrics != nil {
		g.metrics.RecordPolicyDecision(ctx, string(kind), string(action), dec.Allowed)
	}
	if !dec.Allowed {
		g.recordDecision(ctx, "forbidden")
		return &domain.ForbiddenError{Decision: dec}
	}

	if len(refs) == 0 {
		g.recordDecision(ctx, "allowed")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.budget)
	defer cancel()

	results := make([]domain.VerificationResult, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref domain.ForeignReference) {
			defer wg.Done()
			results[i] = g.resolver.Resolve(ctx, ref)
		}(i, ref)
	}
	wg.Wait()

	// A definitive NotFound beats any number of unreachable dependencies:
	// the caller's payload is wrong regardless of what else was down.
	for _, res := range results {
		if res.Outcome == domain.OutcomeNotFound {
			g.recordDecision(ctx, "invalid_reference")
			return &domain.InvalidReferenceError{Ref: res.Ref}
		}
	}

	var unavailable []domain.VerificationResult
	for _, res := range results {
		if res.Outcome != domain.OutcomeConfirmed {
			unavailable = append(unavailable, res)
		}
	}
	if len(unavailable) > 0 {
		g.recordDecision(ctx, "dependency_unavailable")
		return &domain.DependencyUnavailableError{Results: unavailable}
	}

	g.recordDecision(ctx, "allowed")
	return nil
}

func (g *Guard) recordDecision(ctx context.Context, result string) {
	if g.metrics != nil {
		g.metrics.RecordGuardDecision(ctx, result)
	}
}
