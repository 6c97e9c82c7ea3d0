package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for actiongate.yaml/.yml
// in standard locations. The search requires an explicit YAML extension to
// avoid Viper's SetConfigName matching the binary itself (same base name,
// no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("actiongate")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ACTIONGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".actiongate"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "actiongate"))
		}
	} else {
		paths = append(paths, "/etc/actiongate")
	}
	return findConfigFileInPaths(paths)
}

func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "actiongate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds config keys for environment variable support.
// Example: ACTIONGATE_SERVER_HTTP_ADDR overrides server.http_addr.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.log_level")

	_ = viper.BindEnv("validation.fail_closed")
	_ = viper.BindEnv("validation.fail_closed_reason")
	_ = viper.BindEnv("validation.regex_timeout_ms")

	_ = viper.BindEnv("cache.policy_ttl_seconds")
	_ = viper.BindEnv("cache.credential_ttl_seconds")
	_ = viper.BindEnv("cache.aggregate_ttl_seconds")

	_ = viper.BindEnv("rate_limit.table_size_cap")
	_ = viper.BindEnv("rate_limit.cleanup_interval")
	_ = viper.BindEnv("rate_limit.max_idle")

	_ = viper.BindEnv("audit.backend")
	_ = viper.BindEnv("audit.file.dir")
	_ = viper.BindEnv("audit.sqlite.path")

	_ = viper.BindEnv("notify.timeout_seconds")
	_ = viper.BindEnv("notify.max_attempts")

	_ = viper.BindEnv("seed.tenants_file")
	_ = viper.BindEnv("seed.policies_file")

	_ = viper.BindEnv("shutdown.drain_deadline_seconds")

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the GatewayConfig. Callers needing to apply
// CLI flags (e.g. --dev) before validation should use LoadConfigRaw
// instead, then call SetDevDefaults/Validate themselves.
func LoadConfig() (*GatewayConfig, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but
// does NOT apply dev defaults or validate.
func LoadConfigRaw() (*GatewayConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg GatewayConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or an empty string if none was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
