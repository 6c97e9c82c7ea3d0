package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sentinelguard/actiongate/internal/domain/credential"
	"github.com/sentinelguard/actiongate/internal/domain/policy"
	"github.com/sentinelguard/actiongate/internal/domain/tenant"
)

// seedTenant is the YAML shape of one tenants-file entry. Secret is
// plaintext and only ever read here, at boot: it is digested into
// tenant.Tenant.CredentialHash and never persisted or logged.
type seedTenant struct {
	TenantID       string `yaml:"tenant_id"`
	DisplayName    string `yaml:"display_name"`
	Secret         string `yaml:"secret"`
	Active         *bool  `yaml:"active"`
	NotifyEndpoint string `yaml:"notify_endpoint"`
	NotifyEnabled  bool   `yaml:"notify_enabled"`
}

type seedTenantsFile struct {
	Tenants []seedTenant `yaml:"tenants"`
}

// seedRule mirrors policy.Rule's YAML/JSON wire shape (see pkg/wire).
type seedRule struct {
	ActionType        string                       `yaml:"action_type"`
	Constraints       map[string]policy.ConstraintSet `yaml:"constraints"`
	AllowedPrincipals []string                     `yaml:"allowed_principals"`
	BlockedPrincipals []string                     `yaml:"blocked_principals"`
	RateLimit         *policy.RateLimitConfig      `yaml:"rate_limit"`
	AggregateLimit    *policy.AggregateLimitConfig `yaml:"aggregate_limit"`
}

type seedPolicy struct {
	TenantID       string     `yaml:"tenant_id"`
	Name           string     `yaml:"name"`
	Version        string     `yaml:"version"`
	DefaultVerdict string     `yaml:"default_verdict"`
	Rules          []seedRule `yaml:"rules"`
}

type seedPoliciesFile struct {
	Policies []seedPolicy `yaml:"policies"`
}

// LoadSeed reads the tenants and policies YAML files named by cfg (either
// may be empty, in which case that half of the seed is skipped) and
// creates every entry through store/policyStore. It is meant to run once,
// at boot, before the HTTP listener accepts traffic; a tenant or policy
// version that already exists is left untouched rather than treated as an
// error, so re-running with an unchanged seed file is idempotent.
func LoadSeed(ctx context.Context, cfg SeedConfig, store tenant.Store, policyStore policy.Store) error {
	if cfg.TenantsFile != "" {
		if err := loadSeedTenants(ctx, cfg.TenantsFile, store); err != nil {
			return fmt.Errorf("seed tenants: %w", err)
		}
	}
	if cfg.PoliciesFile != "" {
		if err := loadSeedPolicies(ctx, cfg.PoliciesFile, policyStore); err != nil {
			return fmt.Errorf("seed policies: %w", err)
		}
	}
	return nil
}

func loadSeedTenants(ctx context.Context, path string, store tenant.Store) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var file seedTenantsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, st := range file.Tenants {
		if st.TenantID == "" {
			return fmt.Errorf("%s: tenant entry missing tenant_id", path)
		}
		if _, err := store.Get(ctx, st.TenantID); err == nil {
			continue
		} else if err != tenant.ErrNotFound {
			return fmt.Errorf("lookup tenant %s: %w", st.TenantID, err)
		}

		active := true
		if st.Active != nil {
			active = *st.Active
		}

		argonHash, err := credential.SecureHash(st.Secret)
		if err != nil {
			return fmt.Errorf("hash secret for tenant %s: %w", st.TenantID, err)
		}

		t := &tenant.Tenant{
			TenantID:       st.TenantID,
			DisplayName:    st.DisplayName,
			CredentialHash: credential.Digest(st.Secret),
			ArgonHash:      argonHash,
			Active:         active,
			NotifyEndpoint: st.NotifyEndpoint,
			NotifyEnabled:  st.NotifyEnabled,
		}
		if err := store.Create(ctx, t); err != nil {
			return fmt.Errorf("create tenant %s: %w", st.TenantID, err)
		}
	}
	return nil
}

func loadSeedPolicies(ctx context.Context, path string, store policy.Store) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var file seedPoliciesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, sp := range file.Policies {
		if sp.TenantID == "" || sp.Version == "" {
			return fmt.Errorf("%s: policy entry missing tenant_id or version", path)
		}
		if existing, err := store.GetActive(ctx, sp.TenantID); err == nil && existing.Version == sp.Version {
			continue
		} else if err != nil && err != policy.ErrNotFound {
			return fmt.Errorf("lookup active policy for %s: %w", sp.TenantID, err)
		}

		verdict := policy.VerdictBlock
		if sp.DefaultVerdict == string(policy.VerdictAllow) {
			verdict = policy.VerdictAllow
		}

		p := &policy.Policy{
			TenantID:       sp.TenantID,
			Name:           sp.Name,
			Version:        sp.Version,
			DefaultVerdict: verdict,
			Rules:          make([]policy.Rule, 0, len(sp.Rules)),
			Active:         false,
		}
		for _, sr := range sp.Rules {
			order := make([]string, 0, len(sr.Constraints))
			for paramPath := range sr.Constraints {
				order = append(order, paramPath)
			}
			p.Rules = append(p.Rules, policy.Rule{
				ActionType:        sr.ActionType,
				Constraints:       sr.Constraints,
				ConstraintOrder:   order,
				AllowedPrincipals: sr.AllowedPrincipals,
				BlockedPrincipals: sr.BlockedPrincipals,
				RateLimit:         sr.RateLimit,
				AggregateLimit:    sr.AggregateLimit,
			})
		}

		if err := store.Create(ctx, p); err != nil {
			return fmt.Errorf("create policy %s/%s: %w", sp.TenantID, sp.Version, err)
		}
		if err := store.Activate(ctx, sp.TenantID, sp.Version); err != nil {
			return fmt.Errorf("activate policy %s/%s: %w", sp.TenantID, sp.Version, err)
		}
	}
	return nil
}
