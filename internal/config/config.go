// Package config provides the process-wide configuration for actiongate:
// the fail-closed envelope, cache TTLs, rate-limiter bounds, the audit
// persistence backend, and tenant/policy file seeding.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// GatewayConfig is the top-level configuration for the actiongate process.
type GatewayConfig struct {
	// Server configures the inbound listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Validation configures the fail-closed envelope and bounded regex
	// evaluation (spec §4.6, §9).
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`

	// Cache configures per-key-family TTLs for the cache layer (C6).
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// RateLimit bounds the in-memory rate limiter's (C2) table size and
	// idle-entry cleanup.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Audit selects and configures the audit persistence backend (C-audit).
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Notify configures webhook delivery of blocked-action notifications.
	Notify NotifyConfig `yaml:"notify" mapstructure:"notify"`

	// Seed optionally points at YAML files that preload tenants and
	// policies at boot, independent of the admin surface.
	Seed SeedConfig `yaml:"seed" mapstructure:"seed"`

	// Shutdown configures the drain deadline honored by the shutdown
	// coordinator (C8).
	Shutdown ShutdownConfig `yaml:"shutdown" mapstructure:"shutdown"`

	// DevMode enables verbose logging and pretty-printed trace output.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	// HTTPAddr is the address to listen on. Defaults to "127.0.0.1:8080".
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level: debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// ValidationConfig configures C5's fail-closed envelope and C4's bounded
// regex evaluation.
type ValidationConfig struct {
	// FailClosed converts an internal fault into a synthetic reject rather
	// than propagating the error to the caller (spec §4.6, §7 kind 4).
	FailClosed bool `yaml:"fail_closed" mapstructure:"fail_closed"`

	// FailClosedReason is the reason string attached to a fail-closed
	// reject. Defaults to "service temporarily unavailable".
	FailClosedReason string `yaml:"fail_closed_reason" mapstructure:"fail_closed_reason"`

	// RegexTimeoutMs bounds how long a single regex constraint may run
	// before the constraint fails with the reject reason "regex evaluation
	// timeout" (spec §9's "bounded regex evaluation"). Defaults to 50ms.
	RegexTimeoutMs int `yaml:"regex_timeout_ms" mapstructure:"regex_timeout_ms" validate:"omitempty,min=1"`
}

// RegexTimeout returns Validation.RegexTimeoutMs as a time.Duration.
func (v ValidationConfig) RegexTimeout() time.Duration {
	return time.Duration(v.RegexTimeoutMs) * time.Millisecond
}

// CacheConfig configures per-key-family TTLs for the cache layer. Each
// family caches a different kind of lookup and tolerates a different
// staleness window: policy changes are rare and explicitly invalidated on
// write, credential changes are rarer still, but aggregate totals drift
// with every allowed action and need a short TTL.
type CacheConfig struct {
	PolicyTTLSeconds     int `yaml:"policy_ttl_seconds" mapstructure:"policy_ttl_seconds" validate:"omitempty,min=1"`
	CredentialTTLSeconds int `yaml:"credential_ttl_seconds" mapstructure:"credential_ttl_seconds" validate:"omitempty,min=1"`
	AggregateTTLSeconds  int `yaml:"aggregate_ttl_seconds" mapstructure:"aggregate_ttl_seconds" validate:"omitempty,min=1"`
}

// PolicyTTL returns the policy family's TTL as a time.Duration.
func (c CacheConfig) PolicyTTL() time.Duration {
	return time.Duration(c.PolicyTTLSeconds) * time.Second
}

// CredentialTTL returns the credential family's TTL as a time.Duration.
func (c CacheConfig) CredentialTTL() time.Duration {
	return time.Duration(c.CredentialTTLSeconds) * time.Second
}

// AggregateTTL returns the aggregate family's TTL as a time.Duration.
func (c CacheConfig) AggregateTTL() time.Duration {
	return time.Duration(c.AggregateTTLSeconds) * time.Second
}

// RateLimitConfig bounds the in-memory rate limiter.
type RateLimitConfig struct {
	// TableSizeCap is the configured maximum number of distinct rate-limit
	// keys held in memory at once. It is defaulted and validated here but
	// not passed to the rate limiter, which places no cap on its key table;
	// idle keys are removed only by the cleanup sweep (MaxIdle).
	TableSizeCap int `yaml:"table_size_cap" mapstructure:"table_size_cap" validate:"omitempty,min=1"`

	// CleanupInterval is how often expired entries are swept (e.g. "5m").
	CleanupInterval string `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`

	// MaxIdle is the maximum age of an idle entry before eviction (e.g. "1h").
	MaxIdle string `yaml:"max_idle" mapstructure:"max_idle"`
}

// AuditConfig selects the audit persistence backend and configures it.
// Exactly one of File or SQLite is read, depending on Backend.
type AuditConfig struct {
	// Backend selects the persistence implementation: "memory" (dev/tests,
	// no durability), "file" (JSON-lines, no database dependency), or
	// "sqlite" (persistent, queryable, production default).
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=memory file sqlite"`

	File   AuditFileConfig   `yaml:"file" mapstructure:"file"`
	SQLite AuditSQLiteConfig `yaml:"sqlite" mapstructure:"sqlite"`
}

// AuditFileConfig configures the file-based audit backend.
type AuditFileConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	RetentionDays int    `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=1"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb" validate:"omitempty,min=1"`
	CacheSize     int    `yaml:"cache_size" mapstructure:"cache_size" validate:"omitempty,min=1"`
}

// AuditSQLiteConfig configures the SQLite audit/tenant/policy backend.
type AuditSQLiteConfig struct {
	// Path is the database file path. The directory is created if absent.
	Path string `yaml:"path" mapstructure:"path"`
}

// NotifyConfig configures webhook delivery of blocked-action notifications.
type NotifyConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds" mapstructure:"timeout_seconds" validate:"omitempty,min=1"`
	MaxAttempts    int `yaml:"max_attempts" mapstructure:"max_attempts" validate:"omitempty,min=1"`
}

// Timeout returns TimeoutSeconds as a time.Duration.
func (n NotifyConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// SeedConfig points at optional YAML files preloading tenants and
// policies at boot.
type SeedConfig struct {
	TenantsFile  string `yaml:"tenants_file" mapstructure:"tenants_file"`
	PoliciesFile string `yaml:"policies_file" mapstructure:"policies_file"`
}

// ShutdownConfig configures the shutdown coordinator's drain behavior
// (spec §4.9).
type ShutdownConfig struct {
	// DrainDeadlineSeconds bounds how long the coordinator waits for
	// in-flight validations to complete before forcing shutdown.
	DrainDeadlineSeconds int `yaml:"drain_deadline_seconds" mapstructure:"drain_deadline_seconds" validate:"omitempty,min=0"`
}

// DrainDeadline returns DrainDeadlineSeconds as a time.Duration.
func (s ShutdownConfig) DrainDeadline() time.Duration {
	return time.Duration(s.DrainDeadlineSeconds) * time.Second
}

// SetDevDefaults applies development-mode defaults: the in-memory audit
// backend when no backend is set. It seeds no tenants or policies.
func (c *GatewayConfig) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.Audit.Backend == "" {
		c.Audit.Backend = "memory"
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *GatewayConfig) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Validation.FailClosedReason == "" {
		c.Validation.FailClosedReason = "service temporarily unavailable"
	}
	if c.Validation.RegexTimeoutMs == 0 {
		c.Validation.RegexTimeoutMs = 50
	}

	if c.Cache.PolicyTTLSeconds == 0 {
		c.Cache.PolicyTTLSeconds = 60
	}
	if c.Cache.CredentialTTLSeconds == 0 {
		c.Cache.CredentialTTLSeconds = 300
	}
	if c.Cache.AggregateTTLSeconds == 0 {
		c.Cache.AggregateTTLSeconds = 5
	}

	if c.RateLimit.TableSizeCap == 0 {
		c.RateLimit.TableSizeCap = 100000
	}
	if c.RateLimit.CleanupInterval == "" {
		c.RateLimit.CleanupInterval = "5m"
	}
	if c.RateLimit.MaxIdle == "" {
		c.RateLimit.MaxIdle = "1h"
	}

	if c.Audit.Backend == "" {
		c.Audit.Backend = "sqlite"
	}
	if c.Audit.File.Dir == "" {
		c.Audit.File.Dir = "./audit"
	}
	if c.Audit.File.RetentionDays == 0 {
		c.Audit.File.RetentionDays = 30
	}
	if c.Audit.File.MaxFileSizeMB == 0 {
		c.Audit.File.MaxFileSizeMB = 100
	}
	if c.Audit.File.CacheSize == 0 {
		c.Audit.File.CacheSize = 1000
	}
	if c.Audit.SQLite.Path == "" {
		c.Audit.SQLite.Path = "./actiongate.db"
	}

	if c.Notify.TimeoutSeconds == 0 {
		c.Notify.TimeoutSeconds = 5
	}
	if c.Notify.MaxAttempts == 0 {
		c.Notify.MaxAttempts = 3
	}

	// Fail-closed is opt-out by default, matching spec §4.6's guidance
	// that a fault should never leak internals to the caller. Only
	// applied when the user hasn't explicitly set it in YAML/env.
	if !viper.IsSet("validation.fail_closed") {
		c.Validation.FailClosed = true
	}

	if c.Shutdown.DrainDeadlineSeconds == 0 {
		c.Shutdown.DrainDeadlineSeconds = 30
	}
}
