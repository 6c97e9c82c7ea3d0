// Package tenant contains the domain types and store port for tenants.
//
// A tenant is the customer-facing isolation unit: it owns a policy, a
// credential, and an audit log. Deactivating a tenant is soft — the row is
// retained, but the credential resolver (internal/domain/credential) must
// refuse to resolve it, which forces every subsequent validation for that
// tenant to reject at the boundary rather than by policy.
package tenant

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a tenant lookup fails.
var ErrNotFound = errors.New("tenant: not found")

// ErrCredentialTaken is returned by Store.Create/Store.Update when
// the hashed credential collides with an existing tenant's credential.
var ErrCredentialTaken = errors.New("tenant: credential already in use")

// Tenant is a customer-facing isolation unit.
type Tenant struct {
	// TenantID is an opaque, unique string identifier.
	TenantID string
	// DisplayName is a human-readable label.
	DisplayName string
	// CredentialHash is the SHA-256 digest of the tenant's secret credential
	// (see credential.Digest), used as an equality-indexable lookup key.
	// The plaintext credential is never stored; the store receives only
	// its hashes.
	CredentialHash string
	// ArgonHash is the Argon2id hash of the same secret (see
	// credential.SecureHash), checked after a CredentialHash lookup
	// succeeds. A salted, memory-hard hash can't support the equality
	// index above, but it is what actually stands between an attacker who
	// reads the credential_hash column and a successful offline guess of
	// a low-entropy secret. Empty on tenants created before this field
	// existed; the resolver skips the check in that case.
	ArgonHash string
	// Active gates all validation for this tenant at the boundary.
	Active bool
	// NotifyEndpoint is an optional webhook URL notified on blocked actions.
	NotifyEndpoint string
	// NotifyEnabled turns notification delivery on or off independent of
	// whether NotifyEndpoint is set, mirroring the original project model's
	// webhook_url/webhook_enabled split.
	NotifyEnabled bool
	// CreatedAt and UpdatedAt are maintained by the store.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists tenants. Implementations: in-memory (tests), SQLite (prod).
type Store interface {
	// Create inserts a new tenant. t.CredentialHash must already be set by
	// the caller (the store does not hash credentials).
	Create(ctx context.Context, t *Tenant) error
	// Get returns a tenant by TenantID. Returns ErrNotFound if absent.
	Get(ctx context.Context, tenantID string) (*Tenant, error)
	// GetByCredentialHash returns the tenant whose CredentialHash matches.
	// Returns ErrNotFound if no tenant matches.
	GetByCredentialHash(ctx context.Context, credentialHash string) (*Tenant, error)
	// SetActive flips the active flag (soft activate/deactivate).
	SetActive(ctx context.Context, tenantID string, active bool) error
	// Update persists changes to DisplayName/CredentialHash/ArgonHash/
	// NotifyEndpoint/NotifyEnabled.
	Update(ctx context.Context, t *Tenant) error
}
