// Package wire holds the JSON-tagged types exchanged across actiongate's
// external boundaries: the admin API's policy documents, audit query
// responses, and outbound notification payloads. Keeping these separate
// from the domain types (internal/domain/policy, internal/domain/audit)
// means a wire-format change never forces a change to decision logic, and
// vice versa.
package wire

import "github.com/sentinelguard/actiongate/internal/domain/policy"

// PolicyDocument is the JSON/YAML representation of one policy version, as
// submitted to the admin API or read from a seed file.
type PolicyDocument struct {
	TenantID       string               `json:"tenant_id" yaml:"tenant_id"`
	Name           string               `json:"name" yaml:"name"`
	Version        string               `json:"version" yaml:"version"`
	DefaultVerdict string               `json:"default_verdict" yaml:"default_verdict"`
	Rules          []PolicyRuleDocument `json:"rules" yaml:"rules"`
}

// PolicyRuleDocument is the wire representation of one policy.Rule.
type PolicyRuleDocument struct {
	ActionType        string                           `json:"action_type" yaml:"action_type"`
	Constraints       map[string]policy.ConstraintSet  `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	AllowedPrincipals []string                         `json:"allowed_principals,omitempty" yaml:"allowed_principals,omitempty"`
	BlockedPrincipals []string                         `json:"blocked_principals,omitempty" yaml:"blocked_principals,omitempty"`
	RateLimit         *policy.RateLimitConfig          `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	AggregateLimit    *policy.AggregateLimitConfig     `json:"aggregate_limit,omitempty" yaml:"aggregate_limit,omitempty"`
}

// ToPolicy converts d into a domain policy.Policy. ConstraintOrder is
// derived from map iteration since the wire format carries no explicit
// ordering; callers needing stable evaluation-error ordering across
// restarts should prefer a format that preserves key order.
func (d PolicyDocument) ToPolicy() *policy.Policy {
	verdict := policy.VerdictBlock
	if d.DefaultVerdict == string(policy.VerdictAllow) {
		verdict = policy.VerdictAllow
	}

	p := &policy.Policy{
		TenantID:       d.TenantID,
		Name:           d.Name,
		Version:        d.Version,
		DefaultVerdict: verdict,
		Rules:          make([]policy.Rule, 0, len(d.Rules)),
	}
	for _, rd := range d.Rules {
		order := make([]string, 0, len(rd.Constraints))
		for path := range rd.Constraints {
			order = append(order, path)
		}
		p.Rules = append(p.Rules, policy.Rule{
			ActionType:        rd.ActionType,
			Constraints:       rd.Constraints,
			ConstraintOrder:   order,
			AllowedPrincipals: rd.AllowedPrincipals,
			BlockedPrincipals: rd.BlockedPrincipals,
			RateLimit:         rd.RateLimit,
			AggregateLimit:    rd.AggregateLimit,
		})
	}
	return p
}

// FromPolicy converts a domain policy.Policy into its wire representation,
// for returning a policy through the admin API.
func FromPolicy(p *policy.Policy) PolicyDocument {
	d := PolicyDocument{
		TenantID:       p.TenantID,
		Name:           p.Name,
		Version:        p.Version,
		DefaultVerdict: string(p.DefaultVerdict),
		Rules:          make([]PolicyRuleDocument, 0, len(p.Rules)),
	}
	for _, r := range p.Rules {
		d.Rules = append(d.Rules, PolicyRuleDocument{
			ActionType:        r.ActionType,
			Constraints:       r.Constraints,
			AllowedPrincipals: r.AllowedPrincipals,
			BlockedPrincipals: r.BlockedPrincipals,
			RateLimit:         r.RateLimit,
			AggregateLimit:    r.AggregateLimit,
		})
	}
	return d
}
