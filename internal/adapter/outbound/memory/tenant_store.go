// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"sync"

	"github.com/sentinelguard/actiongate/internal/domain/tenant"
)

// TenantStore implements tenant.Store with in-memory maps, indexed both by
// tenant ID and by credential hash so credential resolution (C7) never has
// to scan. Thread-safe for concurrent access; intended for development and
// tests, not production persistence (see internal/adapter/outbound/sqlite).
type TenantStore struct {
	mu         sync.RWMutex
	byID       map[string]*tenant.Tenant
	byCredHash map[string]string // credential hash -> tenant ID
}

// NewTenantStore creates an empty in-memory tenant store.
func NewTenantStore() *TenantStore {
	return &TenantStore{
		byID:       make(map[string]*tenant.Tenant),
		byCredHash: make(map[string]string),
	}
}

// Create adds a new tenant. Returns tenant.ErrCredentialTaken if another
// tenant already holds t.CredentialHash.
func (s *TenantStore) Create(ctx context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byCredHash[t.CredentialHash]; ok && owner != t.TenantID {
		return tenant.ErrCredentialTaken
	}
	s.byID[t.TenantID] = copyTenant(t)
	s.byCredHash[t.CredentialHash] = t.TenantID
	return nil
}

// Get retrieves a tenant by ID.
func (s *TenantStore) Get(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[tenantID]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	return copyTenant(t), nil
}

// GetByCredentialHash resolves the tenant owning credHash (C7's lookup
// path). Returns tenant.ErrNotFound if no tenant holds it.
func (s *TenantStore) GetByCredentialHash(ctx context.Context, credHash string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCredHash[credHash]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	return copyTenant(s.byID[id]), nil
}

// SetActive flips a tenant's active flag, used to suspend access without
// deleting its policy/audit history.
func (s *TenantStore) SetActive(ctx context.Context, tenantID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[tenantID]
	if !ok {
		return tenant.ErrNotFound
	}
	t.Active = active
	return nil
}

// Update replaces the stored tenant record, re-indexing its credential hash
// if it changed. Returns tenant.ErrCredentialTaken if the new hash collides
// with a different tenant.
func (s *TenantStore) Update(ctx context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[t.TenantID]
	if !ok {
		return tenant.ErrNotFound
	}
	if owner, ok := s.byCredHash[t.CredentialHash]; ok && owner != t.TenantID {
		return tenant.ErrCredentialTaken
	}
	if existing.CredentialHash != t.CredentialHash {
		delete(s.byCredHash, existing.CredentialHash)
		s.byCredHash[t.CredentialHash] = t.TenantID
	}
	s.byID[t.TenantID] = copyTenant(t)
	return nil
}

func copyTenant(t *tenant.Tenant) *tenant.Tenant {
	cp := *t
	return &cp
}

var _ tenant.Store = (*TenantStore)(nil)
