// Package service contains application services that compose domain ports
// into the use cases the inbound façade and CLI call.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sentinelguard/actiongate/internal/domain/credential"
	"github.com/sentinelguard/actiongate/internal/domain/policy"
	"github.com/sentinelguard/actiongate/internal/domain/ratelimit"
	"github.com/sentinelguard/actiongate/internal/domain/validator"
	"github.com/sentinelguard/actiongate/internal/telemetry"
)

// ErrAuthorizationFailure wraps a credential resolution failure. It is a
// distinct outcome kind from a policy reject and must never be converted
// by the fail-closed envelope (spec §7 kind 3).
var ErrAuthorizationFailure = errors.New("gateway: authorization failure")

// GatewayService is the single entrypoint an inbound adapter calls: it
// resolves the caller's credential to a tenant (C7), then runs the
// validator (C5) against that tenant.
type GatewayService struct {
	resolver  *credential.Resolver
	validator *validator.Validator
	logger    *slog.Logger
	metrics   *telemetry.Metrics
}

// NewGatewayService constructs a GatewayService. metrics may be nil, in
// which case no Prometheus instruments are recorded.
func NewGatewayService(resolver *credential.Resolver, v *validator.Validator, logger *slog.Logger, metrics *telemetry.Metrics) *GatewayService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayService{resolver: resolver, validator: v, logger: logger, metrics: metrics}
}

// ValidateRequest is the façade-facing request shape: secret replaces
// tenant_id as the caller-supplied credential (spec §4.8's resolve step
// happens here, before VALIDATE).
type ValidateRequest struct {
	Secret        string
	PrincipalName string
	ActionType    string
	Params        map[string]any
	Simulate      bool
}

// Validate resolves secret to a tenant and runs the validation. A
// resolution failure returns ErrAuthorizationFailure, wrapped, never a
// fail-closed reject.
func (g *GatewayService) Validate(ctx context.Context, req ValidateRequest) (validator.Result, error) {
	resolveCtx, span := telemetry.StartSpan(ctx, telemetry.SpanCredentialCheck, "")
	t, err := g.resolver.Resolve(resolveCtx, req.Secret)
	telemetry.EndSpan(span, err)
	if err != nil {
		g.logger.Warn("credential resolution failed", "principal_name", req.PrincipalName)
		g.metrics.IncAuthorizationError()
		return validator.Result{}, fmt.Errorf("%w: %v", ErrAuthorizationFailure, err)
	}

	result, err := g.validator.Validate(ctx, validator.Request{
		TenantID:      t.TenantID,
		PrincipalName: req.PrincipalName,
		ActionType:    req.ActionType,
		Params:        req.Params,
		Simulate:      req.Simulate,
	})
	if err == nil {
		g.metrics.RecordDecision(verdictLabel(result.Allowed), reasonClass(result.Reason))
	}
	return result, err
}

func verdictLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "reject"
}

// reasonClass buckets a reject reason's free text into a coarse label for
// the decisions_total metric, mirroring the reason prefixes the policy
// engine (internal/domain/policy/engine.go, constraints.go) and the
// accountant actually produce.
func reasonClass(reason string) string {
	switch {
	case reason == "":
		return "none"
	case strings.HasPrefix(reason, "Aggregate limit exceeded"):
		return "aggregate"
	case strings.HasPrefix(reason, "Rate limit exceeded"):
		return "rate_limit"
	case strings.Contains(reason, "not allowed by policy"),
		strings.Contains(reason, "allowed agents list"),
		strings.Contains(reason, "is blocked"):
		return "policy"
	default:
		return "constraint"
	}
}

// rateLimiterAdapter narrows a ratelimit.Limiter (which reports a Result
// carrying Count for metrics/testing) down to the policy.RateLimiter port
// (which needs only the boolean outcome), so C4 stays decoupled from C2's
// concrete accounting details.
type rateLimiterAdapter struct {
	limiter ratelimit.Limiter
}

// NewPolicyRateLimiter adapts limiter to the policy.RateLimiter interface.
func NewPolicyRateLimiter(limiter ratelimit.Limiter) policy.RateLimiter {
	return &rateLimiterAdapter{limiter: limiter}
}

func (a *rateLimiterAdapter) Allow(key string, cfg policy.RateLimitConfig) bool {
	result := a.limiter.Allow(key, ratelimit.Config{
		MaxRequests:   cfg.MaxRequests,
		WindowSeconds: cfg.WindowSeconds,
	})
	return result.Allowed
}
