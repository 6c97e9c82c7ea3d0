// Package policy implements the constraint evaluator (C1) and the policy
// engine (C4): rule selection, ordering, and short-circuit evaluation over a
// tenant's active policy.
package policy

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no active policy exists for a tenant.
var ErrNotFound = errors.New("policy: not found")

// Verdict is the default outcome a policy falls back to when no rule
// matches a request's action type.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictBlock Verdict = "block"
)

// Scope names the aggregation dimension of an AggregateLimit.
type Scope string

const (
	ScopePrincipal Scope = "principal"
	ScopeAction    Scope = "action"
	ScopeTenant    Scope = "tenant"
)

// Measure names how an AggregateLimit accumulates.
type Measure string

const (
	MeasureSum   Measure = "sum"
	MeasureCount Measure = "count"
)

// RateLimitConfig is a rule's optional sliding-window rate limit.
type RateLimitConfig struct {
	MaxRequests   int `json:"max_requests" yaml:"max_requests"`
	WindowSeconds int `json:"window_seconds" yaml:"window_seconds"`
}

// AggregateLimitConfig is a rule's optional cumulative limit. Evaluating it
// is deferred from the engine (C4) to the validator (C5), which owns
// persistent state and the request's increment value.
type AggregateLimitConfig struct {
	MaxValue  float64 `json:"max_value" yaml:"max_value"`
	Window    string  `json:"window" yaml:"window"`
	ParamPath string  `json:"param_path" yaml:"param_path"`
	Measure   Measure `json:"measure" yaml:"measure"`
	Scope     Scope   `json:"scope" yaml:"scope"`
}

// Rule is a single entry in a Policy's ordered rule list.
type Rule struct {
	// ActionType is a literal action name or the wildcard "*".
	ActionType string
	// Constraints maps a parameter path to its constraint set. ConstraintOrder
	// carries the original declaration order since Go map iteration is
	// randomized and evaluation order must be deterministic (spec §4.5).
	Constraints      map[string]ConstraintSet
	ConstraintOrder  []string
	AllowedPrincipals []string
	BlockedPrincipals []string
	RateLimit        *RateLimitConfig
	AggregateLimit   *AggregateLimitConfig
}

// IsWildcard reports whether this rule matches every action type.
func (r Rule) IsWildcard() bool { return r.ActionType == "*" }

// Policy is the decision-governing document for one tenant.
type Policy struct {
	TenantID       string
	Name           string
	Version        string
	Rules          []Rule
	DefaultVerdict Verdict
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store persists policies. Exactly one policy per tenant may be Active at a
// time; Activate must flip the previous active row atomically.
type Store interface {
	// GetActive returns the tenant's single active policy, or ErrNotFound.
	GetActive(ctx context.Context, tenantID string) (*Policy, error)
	// Create inserts a new, inactive policy version.
	Create(ctx context.Context, p *Policy) error
	// Activate marks the named policy version active and deactivates any
	// prior active policy for the same tenant, atomically.
	Activate(ctx context.Context, tenantID, version string) error
}

// PendingAggregateCheck names one rule that reached the end of its own
// checks cleanly but carries an aggregate_limit. Aggregate evaluation needs
// persistent state and the request's increment value, so the policy engine
// (C4) defers it to the validator (C5), which completes these in order.
type PendingAggregateCheck struct {
	RuleActionType string
	Config         AggregateLimitConfig
}

// Decision is the result of evaluating a policy against one request.
// PendingAggregates is non-empty only when every matching rule allowed and
// at least one carried an aggregate_limit.
type Decision struct {
	Allowed           bool
	Reason            string
	MatchedRule       string
	PolicyVersion     string
	PendingAggregates []PendingAggregateCheck
}
