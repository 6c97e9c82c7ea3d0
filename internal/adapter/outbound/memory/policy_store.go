package memory

import (
	"context"
	"sync"

	"github.com/sentinelguard/actiongate/internal/domain/policy"
)

// PolicyStore implements policy.Store in memory, keyed by tenant. At most
// one version per tenant is active at a time (spec §3: "exactly one active
// policy version per tenant"); Activate enforces that by deactivating any
// previously active version before marking the requested one active.
type PolicyStore struct {
	mu sync.RWMutex
	// versions holds every stored version, keyed by tenant ID then version.
	versions map[string]map[string]*policy.Policy
}

// NewPolicyStore creates an empty in-memory policy store.
func NewPolicyStore() *PolicyStore {
	return &PolicyStore{versions: make(map[string]map[string]*policy.Policy)}
}

// GetActive returns the active policy for tenantID, or policy.ErrNotFound if
// none is active.
func (s *PolicyStore) GetActive(ctx context.Context, tenantID string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.versions[tenantID] {
		if p.Active {
			return copyPolicy(p), nil
		}
	}
	return nil, policy.ErrNotFound
}

// Create stores a new policy version. It is not made active; a separate
// Activate call is required (spec §3: policies are authored then promoted).
func (s *PolicyStore) Create(ctx context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.versions[p.TenantID] == nil {
		s.versions[p.TenantID] = make(map[string]*policy.Policy)
	}
	stored := copyPolicy(p)
	stored.Active = false
	s.versions[p.TenantID][p.Version] = stored
	return nil
}

// Activate marks the given version active for tenantID and deactivates
// every other version of that tenant's policy, so a reader never observes
// two active versions at once.
func (s *PolicyStore) Activate(ctx context.Context, tenantID, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, ok := s.versions[tenantID]
	if !ok {
		return policy.ErrNotFound
	}
	target, ok := versions[version]
	if !ok {
		return policy.ErrNotFound
	}
	for _, p := range versions {
		p.Active = false
	}
	target.Active = true
	return nil
}

// copyPolicy deep-copies a policy so callers can never mutate stored state
// through a returned pointer.
func copyPolicy(p *policy.Policy) *policy.Policy {
	cp := *p
	cp.Rules = make([]policy.Rule, len(p.Rules))
	for i, r := range p.Rules {
		cp.Rules[i] = copyRule(r)
	}
	return &cp
}

func copyRule(r policy.Rule) policy.Rule {
	cr := r
	if r.Constraints != nil {
		cr.Constraints = make(map[string]policy.ConstraintSet, len(r.Constraints))
		for k, v := range r.Constraints {
			cs := make(policy.ConstraintSet, len(v))
			for ck, cv := range v {
				cs[ck] = cv
			}
			cr.Constraints[k] = cs
		}
	}
	if r.ConstraintOrder != nil {
		cr.ConstraintOrder = append([]string(nil), r.ConstraintOrder...)
	}
	if r.AllowedPrincipals != nil {
		cr.AllowedPrincipals = append([]string(nil), r.AllowedPrincipals...)
	}
	if r.BlockedPrincipals != nil {
		cr.BlockedPrincipals = append([]string(nil), r.BlockedPrincipals...)
	}
	if r.RateLimit != nil {
		rl := *r.RateLimit
		cr.RateLimit = &rl
	}
	if r.AggregateLimit != nil {
		al := *r.AggregateLimit
		cr.AggregateLimit = &al
	}
	return cr
}

var _ policy.Store = (*PolicyStore)(nil)
