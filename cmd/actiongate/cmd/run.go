package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sentinelguard/actiongate/internal/adapter/inbound/httpapi"
	"github.com/sentinelguard/actiongate/internal/adapter/outbound/filestore"
	"github.com/sentinelguard/actiongate/internal/adapter/outbound/memory"
	"github.com/sentinelguard/actiongate/internal/adapter/outbound/notify"
	"github.com/sentinelguard/actiongate/internal/adapter/outbound/sqlite"
	"github.com/sentinelguard/actiongate/internal/config"
	"github.com/sentinelguard/actiongate/internal/domain/aggregate"
	"github.com/sentinelguard/actiongate/internal/domain/audit"
	"github.com/sentinelguard/actiongate/internal/domain/credential"
	domainnotify "github.com/sentinelguard/actiongate/internal/domain/notify"
	"github.com/sentinelguard/actiongate/internal/domain/policy"
	"github.com/sentinelguard/actiongate/internal/domain/shutdown"
	"github.com/sentinelguard/actiongate/internal/domain/tenant"
	"github.com/sentinelguard/actiongate/internal/domain/validator"
	"github.com/sentinelguard/actiongate/internal/service"
	"github.com/sentinelguard/actiongate/internal/telemetry"
)

var devMode bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot the gateway and serve the validate façade",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigRaw()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if devMode {
			cfg.DevMode = true
		}
		// LoadConfigRaw has already filled in the sqlite default; dev mode
		// replaces it with memory unless a backend was set explicitly.
		if cfg.DevMode && !viper.IsSet("audit.backend") {
			cfg.Audit.Backend = ""
		}
		cfg.SetDevDefaults()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}

		logLevel := parseLogLevel(cfg.Server.LogLevel)
		if cfg.DevMode {
			logLevel = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
		if file := config.ConfigFileUsed(); file != "" {
			logger.Info("loaded config", "file", file)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return boot(ctx, cfg, logger)
	},
}

func init() {
	runCmd.Flags().BoolVar(&devMode, "dev", false, "force development mode (in-memory audit, verbose logging)")
	rootCmd.AddCommand(runCmd)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// boot wires every domain port to a concrete adapter and blocks serving
// the validate façade until ctx is cancelled.
func boot(ctx context.Context, cfg *config.GatewayConfig, logger *slog.Logger) error {
	tenantStore, policyStore, auditStore, err := buildStores(cfg, logger)
	if err != nil {
		return fmt.Errorf("build stores: %w", err)
	}

	c := memory.NewCache()
	rateLimiter := memory.NewRateLimiterWithConfig(
		parseDurationOrDefault(cfg.RateLimit.CleanupInterval, 5*time.Minute),
		parseDurationOrDefault(cfg.RateLimit.MaxIdle, time.Hour),
	)
	rateLimiter.StartCleanup(ctx.Done())
	defer rateLimiter.Stop()

	engine := policy.NewEngine(service.NewPolicyRateLimiter(rateLimiter), cfg.Validation.RegexTimeout())
	accountant := aggregate.NewAccountant(auditStore, c)
	resolver := credential.NewResolver(tenantStore, c, cfg.Cache.CredentialTTL())

	var notifier domainnotify.Notifier = domainnotify.NoOp{}
	if cfg.Notify.TimeoutSeconds > 0 {
		notifier = notify.NewWebhookNotifier(logger,
			notify.WithTimeout(cfg.Notify.Timeout()),
			notify.WithMaxAttempts(cfg.Notify.MaxAttempts),
		)
	}

	v := validator.New(policyStore, c, engine, accountant, auditStore, notifier, tenantStore, logger)
	v.PolicyCacheTTL = cfg.Cache.PolicyTTL()
	v.FailClosed = cfg.Validation.FailClosed
	v.FailClosedReason = cfg.Validation.FailClosedReason

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	tp, err := telemetry.NewTracerProvider(telemetry.TracerProviderConfig{
		ServiceName: "actiongate",
		SampleRatio: 1,
		Pretty:      cfg.DevMode,
	})
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("tracer provider shutdown failed", "error", err)
			}
		}()
	}

	if err := config.LoadSeed(ctx, cfg.Seed, tenantStore, policyStore); err != nil {
		return fmt.Errorf("load seed: %w", err)
	}

	gateway := service.NewGatewayService(resolver, v, logger, metrics)
	coordinator := shutdown.NewCoordinator()
	srv := httpapi.NewServer(cfg.Server.HTTPAddr, gateway, coordinator, reg, logger)

	err = srv.Run(ctx, cfg.Shutdown.DrainDeadline())
	logger.Info("actiongate stopped")
	return err
}

func buildStores(cfg *config.GatewayConfig, logger *slog.Logger) (tenant.Store, policy.Store, audit.Store, error) {
	switch cfg.Audit.Backend {
	case "sqlite":
		store, err := sqlite.Open(cfg.Audit.SQLite.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return sqlite.NewTenantStore(store), sqlite.NewPolicyStore(store), sqlite.NewAuditStore(store), nil
	case "file":
		auditStore, err := filestore.NewAuditStore(filestore.Config{
			Dir:           cfg.Audit.File.Dir,
			RetentionDays: cfg.Audit.File.RetentionDays,
			MaxFileSizeMB: cfg.Audit.File.MaxFileSizeMB,
			CacheSize:     cfg.Audit.File.CacheSize,
		}, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open file audit store: %w", err)
		}
		return memory.NewTenantStore(), memory.NewPolicyStore(), auditStore, nil
	default:
		return memory.NewTenantStore(), memory.NewPolicyStore(), memory.NewAuditStore(), nil
	}
}

func parseDurationOrDefault(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
