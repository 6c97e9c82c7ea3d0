package config

import (
	"strings"
	"testing"
)

// minimalValidConfig returns a minimal valid GatewayConfig for testing.
func minimalValidConfig() *GatewayConfig {
	cfg := &GatewayConfig{
		Audit: AuditConfig{Backend: "memory"},
	}
	cfg.SetDefaults()
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_ZeroConfig(t *testing.T) {
	t.Parallel()

	// Simulate a process starting with no config file at all: SetDefaults
	// picks the sqlite backend, which requires a path -- also defaulted.
	cfg := &GatewayConfig{}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() zero-config unexpected error: %v", err)
	}
	if cfg.Audit.Backend != "sqlite" {
		t.Errorf("default audit backend = %q, want %q", cfg.Audit.Backend, "sqlite")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.LogLevel = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "LogLevel") {
		t.Errorf("error = %q, want to contain 'LogLevel'", err.Error())
	}
}

func TestValidate_InvalidHTTPAddr(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.HTTPAddr = "not-a-host-port"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid http_addr, got nil")
	}
	if !strings.Contains(err.Error(), "HTTPAddr") {
		t.Errorf("error = %q, want to contain 'HTTPAddr'", err.Error())
	}
}

func TestValidate_InvalidAuditBackend(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Audit.Backend = "postgres"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid audit backend, got nil")
	}
	if !strings.Contains(err.Error(), "Backend") {
		t.Errorf("error = %q, want to contain 'Backend'", err.Error())
	}
}

func TestValidate_FileBackendRequiresDir(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Audit.Backend = "file"
	cfg.Audit.File.Dir = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for file backend with no dir, got nil")
	}
	if !strings.Contains(err.Error(), "audit.file.dir") {
		t.Errorf("error = %q, want to contain 'audit.file.dir'", err.Error())
	}
}

func TestValidate_FileBackendWithDirIsValid(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Audit.Backend = "file"
	cfg.Audit.File.Dir = "/var/log/actiongate"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with file backend + dir unexpected error: %v", err)
	}
}

func TestValidate_SQLiteBackendRequiresPath(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Audit.Backend = "sqlite"
	cfg.Audit.SQLite.Path = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for sqlite backend with no path, got nil")
	}
	if !strings.Contains(err.Error(), "audit.sqlite.path") {
		t.Errorf("error = %q, want to contain 'audit.sqlite.path'", err.Error())
	}
}

func TestValidate_MemoryBackendNeedsNoSubConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Audit.Backend = "memory"
	cfg.Audit.File.Dir = ""
	cfg.Audit.SQLite.Path = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with memory backend unexpected error: %v", err)
	}
}

func TestValidate_RegexTimeoutMustBePositive(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Validation.RegexTimeoutMs = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for negative regex timeout, got nil")
	}
	if !strings.Contains(err.Error(), "RegexTimeoutMs") {
		t.Errorf("error = %q, want to contain 'RegexTimeoutMs'", err.Error())
	}
}

func TestValidate_RateLimitTableSizeCapMustBePositive(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.RateLimit.TableSizeCap = -5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for negative table size cap, got nil")
	}
	if !strings.Contains(err.Error(), "TableSizeCap") {
		t.Errorf("error = %q, want to contain 'TableSizeCap'", err.Error())
	}
}

func TestFormatSingleValidationError_KnownTags(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Audit.Backend = "postgres"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "must be one of") {
		t.Errorf("error = %q, want friendly 'must be one of' message for oneof tag", err.Error())
	}
}
