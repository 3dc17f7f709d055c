// Package policy is the data-driven authorization table for the platform.
// One declarative mapping of (resource, action) to required access replaces
// the per-route role-check closures each service used to carry.
package policy

import (
	"fmt"

	"chronoguard/internal/domain"
)

// Access is the level of access a rule requires.
type Access int

const (
	// AccessPublic permits the action without a principal.
	AccessPublic Access = iota
	// AccessAuthenticated permits any authenticated principal.
	AccessAuthenticated
	// AccessRoles permits only principals holding one of the rule's roles.
	AccessRoles
)

// Rule states who may perform one (resource, action) pair.
type Rule struct {
	Access Access
	Roles  []domain.Role
}

// Public permits the action without authentication.
func Public() Rule { return Rule{Access: AccessPublic} }

// Authenticated permits any authenticated principal.
func Authenticated() Rule { return Rule{Access: AccessAuthenticated} }

// Roles permits only the given roles.
func Roles(roles ...domain.Role) Rule {
	return Rule{Access: AccessRoles, Roles: roles}
}

type ruleKey struct {
	kind   domain.ResourceKind
	action domain.Action
}

// Table evaluates authorization decisions from a declarative rule set.
// Anything not explicitly present is denied.
type Table struct {
	rules map[ruleKey]Rule
}

// New creates an empty table.
func New() *Table {
	return &Table{rules: make(map[ruleKey]Rule)}
}

// Set registers the rule for one (resource, action) pair.
func (t *Table) Set(kind domain.ResourceKind, action domain.Action, r Rule) *Table {
	t.rules[ruleKey{kind, action}] = r
	return t
}

// Default is the platform's policy: reads are public, content creation needs
// an authenticated account, curation and moderation need elevated roles.
func Default() *Table {
	mods := []domain.Role{domain.RoleModerator, domain.RoleAdmin}
	curators := []domain.Role{domain.RoleModerator, domain.RoleAdmin, domain.RoleCurator}

	t := New()

	t.Set(domain.ResourceEvent, domain.ActionRead, Public())
	t.Set(domain.ResourceEvent, domain.ActionList, Public())
	t.Set(domain.ResourceEvent, domain.ActionCreate, Authenticated())
	t.Set(domain.ResourceEvent, domain.ActionUpdate, Authenticated())
	t.Set(domain.ResourceEvent, domain.ActionDelete, Roles(mods...))

	t.Set(domain.ResourcePeriod, domain.ActionRead, Public())
	t.Set(domain.ResourcePeriod, domain.ActionList, Public())
	t.Set(domain.ResourcePeriod, domain.ActionCreate, Roles(curators...))
	t.Set(domain.ResourcePeriod, domain.ActionUpdate, Roles(curators...))
	t.Set(domain.ResourcePeriod, domain.ActionDelete, Roles(mods...))

	t.Set(domain.ResourceMedia, domain.ActionRead, Public())
	t.Set(domain.ResourceMedia, domain.ActionList, Public())
	t.Set(domain.ResourceMedia, domain.ActionCreate, Roles(curators...))
	t.Set(domain.ResourceMedia, domain.ActionUpdate, Roles(curators...))
	t.Set(domain.ResourceMedia, domain.ActionDelete, Roles(mods...))

	t.Set(domain.ResourceComment, domain.ActionRead, Public())
	t.Set(domain.ResourceComment, domain.ActionCreate, Authenticated())
	t.Set(domain.ResourceComment, domain.ActionList, Roles(mods...))
	t.Set(domain.ResourceComment, domain.ActionApprove, Roles(mods...))
	t.Set(domain.ResourceComment, domain.ActionDelete, Roles(mods...))

	return t
}

// Evaluate decides whether the principal may perform action on kind.
// A nil principal is an unauthenticated request. Denials distinguish
// "unauthenticated" from "insufficient role" so the HTTP boundary can map
// them to 401 and 403 uniformly.
func (t *Table) Evaluate(p *domain.Principal, kind domain.ResourceKind, action domain.Action) domain.AuthorizationDecision {
	rule, ok := t.rules[ruleKey{kind, action}]
	if !ok {
		if p == nil {
			return domain.Deny(domain.DenyUnauthenticated, "authentication required")
		}
		return domain.Deny(domain.DenyInsufficientRole,
			fmt.Sprintf("%s %s is not permitted", action, kind))
	}

	if rule.Access == AccessPublic {
		return domain.Allow()
	}
	if p == nil {
		return domain.Deny(domain.DenyUnauthenticated, "authentication required")
	}
	if rule.Access == AccessAuthenticated {
		return domain.Allow()
	}
	if p.Is(rule.Roles...) {
		return domain.Allow()
	}
	return domain.Deny(domain.DenyInsufficientRole,
		fmt.Sprintf("insufficient role: %s may not %s %s", p.Role, action, kind))
}
