// Package credential resolves an opaque secret to a tenant identity (C7).
package credential

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/sentinelguard/actiongate/internal/domain/cache"
	"github.com/sentinelguard/actiongate/internal/domain/tenant"
)

// ErrNotFound is returned when secret does not resolve to any active
// tenant, whether because no tenant holds it or the tenant is inactive.
var ErrNotFound = errors.New("credential: not found")

// DefaultTTL is the cache lifetime for a resolved credential entry.
const DefaultTTL = 5 * time.Minute

// cached is the JSON shape stored under a credential cache key. It carries
// the full tenant identity (spec §4.7's key-schema table: "tenant identity
// (id, active, notify fields)") so a cache hit resolves without touching
// the store at all.
type cached struct {
	TenantID       string `json:"tenant_id"`
	DisplayName    string `json:"display_name"`
	Active         bool   `json:"active"`
	NotifyEndpoint string `json:"notify_endpoint"`
	NotifyEnabled  bool   `json:"notify_enabled"`
}

func (c cached) tenant() *tenant.Tenant {
	return &tenant.Tenant{
		TenantID:       c.TenantID,
		DisplayName:    c.DisplayName,
		Active:         c.Active,
		NotifyEndpoint: c.NotifyEndpoint,
		NotifyEnabled:  c.NotifyEnabled,
	}
}

func toCached(t *tenant.Tenant) cached {
	return cached{
		TenantID:       t.TenantID,
		DisplayName:    t.DisplayName,
		Active:         t.Active,
		NotifyEndpoint: t.NotifyEndpoint,
		NotifyEnabled:  t.NotifyEnabled,
	}
}

// Resolver maps a secret to a tenant, cache-first (spec §4.8). The cache
// entry for a given secret must be explicitly invalidated whenever the
// owning tenant is modified; see Invalidate.
type Resolver struct {
	Store tenant.Store
	Cache cache.Cache
	TTL   time.Duration
}

// NewResolver constructs a Resolver. If ttl is zero, DefaultTTL is used.
func NewResolver(store tenant.Store, c cache.Cache, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{Store: store, Cache: c, TTL: ttl}
}

func key(secret string) string { return cache.KeyPrefixCredential + secret }

// Digest computes the deterministic lookup key stored as a tenant's
// CredentialHash. Argon2id is salted by design and cannot support an
// equality index, so the index uses a plain SHA-256 digest of the secret;
// Resolve additionally verifies the tenant's ArgonHash (see SecureHash)
// once the digest lookup has narrowed the search to one candidate.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// SecureHash computes the Argon2id hash stored as a tenant's ArgonHash,
// verified on every resolve once the fast CredentialHash lookup has
// narrowed the search to one tenant.
func SecureHash(secret string) (string, error) {
	return argon2id.CreateHash(secret, argon2id.DefaultParams)
}

// Resolve returns the tenant owning secret. Inactive tenants resolve to
// ErrNotFound so a deactivated tenant rejects at the boundary rather than
// by policy (spec §4.9's "already-running validations complete" does not
// extend to newly arriving requests against a deactivated tenant).
func (r *Resolver) Resolve(ctx context.Context, secret string) (*tenant.Tenant, error) {
	if raw, ok := r.Cache.Get(ctx, key(secret)); ok {
		var c cached
		if err := json.Unmarshal(raw, &c); err == nil {
			if !c.Active {
				return nil, ErrNotFound
			}
			return c.tenant(), nil
		}
	}

	t, err := r.Store.GetByCredentialHash(ctx, Digest(secret))
	if errors.Is(err, tenant.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.ArgonHash != "" {
		match, err := argon2id.ComparePasswordAndHash(secret, t.ArgonHash)
		if err != nil || !match {
			return nil, ErrNotFound
		}
	}
	if raw, err := json.Marshal(toCached(t)); err == nil {
		r.Cache.Set(ctx, key(secret), raw, r.TTL)
	}
	if !t.Active {
		return nil, ErrNotFound
	}
	return t, nil
}

// Invalidate evicts the cached entry for secret. Callers must invoke this
// whenever the tenant owning secret is modified (credential rotation,
// activation/deactivation), so a stale cache entry never outlives the
// change it should reflect.
func (r *Resolver) Invalidate(ctx context.Context, secret string) {
	r.Cache.Delete(ctx, key(secret))
}
