package policy

import (
	"sort"
	"time"
)

// Request is the input to one evaluation: a principal acting with
// action_type against a tenant's policy, carrying structured params.
type Request struct {
	PrincipalName string
	ActionType    string
	Params        map[string]any
}

// RateLimiter is the narrow capability the engine needs from C2: check and,
// on accept, record one attempt at key.
type RateLimiter interface {
	Allow(key string, cfg RateLimitConfig) (allowed bool)
}

// Engine evaluates a policy against a request (C4). It composes the
// constraint evaluator (C1) directly and the rate limiter (C2) through the
// RateLimiter capability; aggregate limits are deferred to the caller.
type Engine struct {
	RegexTimeout time.Duration
	RateLimiter  RateLimiter
}

// NewEngine constructs an Engine. rateLimiter may be nil only if no policy
// ever configures a rate_limit rule.
func NewEngine(rateLimiter RateLimiter, regexTimeout time.Duration) *Engine {
	return &Engine{RegexTimeout: regexTimeout, RateLimiter: rateLimiter}
}

// Evaluate runs the policy engine's rule-selection, ordering and
// short-circuit evaluation (spec §4.5) for one request against p.
//
// AND-of-rules semantics: a matching rule cannot grant what a prior
// matching rule denied, so every selected rule is evaluated even after one
// defers an aggregate check, and evaluation only stops early on an actual
// reject.
func (e *Engine) Evaluate(p *Policy, req Request) Decision {
	selected := selectRules(p.Rules, req.ActionType)
	if len(selected) == 0 {
		if p.DefaultVerdict == VerdictBlock {
			return Decision{
				Allowed: false,
				Reason:  "action '" + req.ActionType + "' not allowed by policy (no matching rules)",
			}
		}
		return Decision{Allowed: true}
	}

	var pending []PendingAggregateCheck
	for _, rule := range selected {
		d, rejected := e.evaluateRule(rule, req)
		if rejected {
			return d
		}
		if rule.AggregateLimit != nil {
			pending = append(pending, PendingAggregateCheck{
				RuleActionType: rule.ActionType,
				Config:         *rule.AggregateLimit,
			})
		}
	}
	return Decision{Allowed: true, PendingAggregates: pending}
}

// evaluateRule evaluates one rule's checks in the fixed order of spec §4.5
// step 3, short-circuiting on the first reject. The returned bool reports
// whether the rule rejected (true) or allowed/deferred (false).
func (e *Engine) evaluateRule(rule Rule, req Request) (Decision, bool) {
	if len(rule.AllowedPrincipals) > 0 && !contains(rule.AllowedPrincipals, req.PrincipalName) {
		return Decision{
			Allowed:     false,
			Reason:      "Agent '" + req.PrincipalName + "' not in allowed agents list",
			MatchedRule: rule.ActionType,
		}, true
	}
	if contains(rule.BlockedPrincipals, req.PrincipalName) {
		return Decision{
			Allowed:     false,
			Reason:      "Agent '" + req.PrincipalName + "' is blocked",
			MatchedRule: rule.ActionType,
		}, true
	}
	if rule.RateLimit != nil {
		key := req.PrincipalName + ":" + req.ActionType
		if e.RateLimiter == nil || !e.RateLimiter.Allow(key, *rule.RateLimit) {
			return Decision{
				Allowed: false,
				Reason: "Rate limit exceeded: " +
					itoa(rule.RateLimit.MaxRequests) + " per " + itoa(rule.RateLimit.WindowSeconds) + "s",
				MatchedRule: rule.ActionType,
			}, true
		}
	}
	for _, path := range rule.ConstraintOrder {
		cs := rule.Constraints[path]
		value := resolvePath(req.Params, path)
		if ok, reason := evaluateConstraintSet(path, cs, value, e.RegexTimeout); !ok {
			return Decision{Allowed: false, Reason: reason, MatchedRule: rule.ActionType}, true
		}
	}
	return Decision{Allowed: true, MatchedRule: rule.ActionType}, false
}

// selectRules takes rules whose ActionType matches actionType literally,
// plus all wildcard rules, and sorts them stably so literal matches precede
// wildcard matches while otherwise preserving declaration order.
func selectRules(rules []Rule, actionType string) []Rule {
	var selected []Rule
	for _, r := range rules {
		if r.ActionType == actionType || r.IsWildcard() {
			selected = append(selected, r)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return !selected[i].IsWildcard() && selected[j].IsWildcard()
	})
	return selected
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func itoa(n int) string {
	neg := n < 0
	if n == 0 {
		return "0"
	}
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
