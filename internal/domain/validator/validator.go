// Package validator implements the validator orchestrator (C5): the only
// component permitted to perform I/O beyond the cache. It composes the
// policy engine (C4), the aggregate accountant (C3), the cache layer (C6)
// and the audit store, and honors simulate mode and the fail-closed
// envelope (spec §4.6).
package validator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sentinelguard/actiongate/internal/domain/aggregate"
	"github.com/sentinelguard/actiongate/internal/domain/audit"
	"github.com/sentinelguard/actiongate/internal/domain/cache"
	"github.com/sentinelguard/actiongate/internal/domain/notify"
	"github.com/sentinelguard/actiongate/internal/domain/policy"
	"github.com/sentinelguard/actiongate/internal/domain/tenant"
)

const tracerName = "github.com/sentinelguard/actiongate/internal/domain/validator"

// Span names for Validate's three suspension points: resolving the active
// policy, recomputing an aggregate limit from the audit store, and
// appending the resulting audit record.
const (
	spanPolicyLookup   = "policy_lookup"
	spanAggregateCheck = "aggregate_check"
	spanAuditWrite     = "audit_write"
)

func startSpan(ctx context.Context, name, tenantID string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	if tenantID != "" {
		span.SetAttributes(attribute.String("tenant_id", tenantID))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Request is one VALIDATE call (spec §6).
type Request struct {
	TenantID      string
	PrincipalName string
	ActionType    string
	Params        map[string]any
	Simulate      bool
}

// Result is the VALIDATE response (spec §6). ActionID is empty for
// simulated decisions per spec's action_id: string|null; a fail-closed
// reject carries a sentinel id prefixed "fail-closed-".
type Result struct {
	Allowed        bool
	ActionID       string
	Reason         string
	PolicyVersion  string
	EvalDurationMs int64
	Simulated      bool
}

// Validator is the C5 orchestrator.
type Validator struct {
	PolicyStore policy.Store
	Cache       cache.Cache
	Engine      *policy.Engine
	Accountant  *aggregate.Accountant
	AuditStore  audit.Store
	Notifier    notify.Notifier
	// TenantStore is consulted only to read NotifyEndpoint/NotifyEnabled for
	// a blocked event; it may be nil, in which case notifications are
	// skipped entirely.
	TenantStore tenant.Store

	PolicyCacheTTL time.Duration

	// FailClosed, when true, converts a FaultError into a synthetic reject
	// rather than propagating it to the caller (spec §4.6, §7 kind 4).
	FailClosed       bool
	FailClosedReason string

	Logger *slog.Logger

	// newActionID is overridable in tests; defaults to uuid.NewString.
	newActionID func() string
}

// New constructs a Validator. cache may be cache.NoOp{}; notifier may be
// notify.NoOp{}.
func New(store policy.Store, c cache.Cache, engine *policy.Engine, accountant *aggregate.Accountant, auditStore audit.Store, notifier notify.Notifier, tenantStore tenant.Store, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		PolicyStore:      store,
		Cache:            c,
		Engine:           engine,
		Accountant:       accountant,
		AuditStore:       auditStore,
		Notifier:         notifier,
		TenantStore:      tenantStore,
		PolicyCacheTTL:   time.Minute,
		FailClosedReason: "service temporarily unavailable",
		Logger:           logger,
		newActionID:      uuid.NewString,
	}
}

// Validate runs one validation end to end (spec §4.6's numbered algorithm).
func (v *Validator) Validate(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	p, err := v.resolvePolicy(ctx, req.TenantID)
	if err != nil {
		return v.handleFault(ctx, req, start, "resolve_policy", err)
	}

	decision := v.evaluate(p, req)

	if decision.Allowed {
		if rejected, reason := v.checkAggregates(ctx, req, decision.PendingAggregates); rejected {
			decision.Allowed = false
			decision.Reason = reason
		}
	}

	elapsed := time.Since(start).Milliseconds()
	policyVersion := ""
	if p != nil {
		policyVersion = p.Version
	}

	if req.Simulate {
		return Result{
			Allowed:        decision.Allowed,
			Reason:         decision.Reason,
			PolicyVersion:  policyVersion,
			EvalDurationMs: elapsed,
			Simulated:      true,
		}, nil
	}

	actionID := v.newActionID()
	record := audit.Record{
		ActionID:       actionID,
		TenantID:       req.TenantID,
		PrincipalName:  req.PrincipalName,
		ActionType:     req.ActionType,
		Params:         req.Params,
		Allowed:        decision.Allowed,
		Reason:         decision.Reason,
		PolicyVersion:  policyVersion,
		EvalDurationMs: elapsed,
		Timestamp:      time.Now().UTC(),
	}
	auditCtx, auditSpan := startSpan(ctx, spanAuditWrite, req.TenantID)
	appendErr := v.AuditStore.Append(auditCtx, record)
	endSpan(auditSpan, appendErr)
	if appendErr != nil {
		return v.handleFault(ctx, req, start, "audit_append", appendErr)
	}

	if decision.Allowed && len(decision.PendingAggregates) > 0 {
		v.Accountant.Invalidate(ctx, req.TenantID)
	}
	if !decision.Allowed {
		v.notifyBlocked(ctx, record)
	}

	return Result{
		Allowed:        decision.Allowed,
		ActionID:       actionID,
		Reason:         decision.Reason,
		PolicyVersion:  policyVersion,
		EvalDurationMs: elapsed,
		Simulated:      false,
	}, nil
}

// resolvePolicy fetches the active policy for tenantID, cache then store.
// A tenant with no active policy evaluates as an empty policy with
// default_verdict=allow (spec §4.6 step 2).
func (v *Validator) resolvePolicy(ctx context.Context, tenantID string) (p *policy.Policy, err error) {
	ctx, span := startSpan(ctx, spanPolicyLookup, tenantID)
	defer func() { endSpan(span, err) }()

	key := cache.KeyPrefixPolicy + tenantID
	if raw, ok := v.Cache.Get(ctx, key); ok {
		var cached policy.Policy
		if err := json.Unmarshal(raw, &cached); err == nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return &cached, nil
		}
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	p, err = v.PolicyStore.GetActive(ctx, tenantID)
	if errors.Is(err, policy.ErrNotFound) {
		return &policy.Policy{TenantID: tenantID, DefaultVerdict: policy.VerdictAllow}, nil
	}
	if err != nil {
		return nil, err
	}
	if raw, marshalErr := json.Marshal(p); marshalErr == nil {
		v.Cache.Set(ctx, key, raw, v.PolicyCacheTTL)
	}
	return p, nil
}

func (v *Validator) evaluate(p *policy.Policy, req Request) policy.Decision {
	return v.Engine.Evaluate(p, policy.Request{
		PrincipalName: req.PrincipalName,
		ActionType:    req.ActionType,
		Params:        req.Params,
	})
}

// checkAggregates performs the deferred aggregate-limit checks C4 could
// not (spec §4.6 step 4), in the declaration order C4 returned them.
func (v *Validator) checkAggregates(ctx context.Context, req Request, pending []policy.PendingAggregateCheck) (rejected bool, reason string) {
	if len(pending) == 0 {
		return false, ""
	}
	spanCtx, span := startSpan(ctx, spanAggregateCheck, req.TenantID)
	var spanErr error
	defer func() { endSpan(span, spanErr) }()

	for _, check := range pending {
		limit := aggregate.Limit{
			MaxValue:  check.Config.MaxValue,
			Window:    check.Config.Window,
			ParamPath: check.Config.ParamPath,
			Measure:   aggregate.Measure(check.Config.Measure),
			Scope:     aggregate.Scope(check.Config.Scope),
		}

		currentTotal, err := v.Accountant.CurrentTotal(spanCtx, req.TenantID, limit, req.PrincipalName, req.ActionType)
		if err != nil {
			v.Logger.Warn("aggregate recompute failed, treating as zero", "error", err, "tenant_id", req.TenantID)
			currentTotal = 0
			spanErr = err
		}

		increment := 1.0
		if limit.Measure == aggregate.MeasureSum {
			if raw, ok := policy.ResolveParamPath(req.Params, limit.ParamPath); ok {
				if n, err := policy.ToNumber(raw); err == nil {
					increment = n
				} else {
					increment = 0
				}
			} else {
				increment = 0
			}
		}

		if currentTotal+increment > limit.MaxValue {
			return true, "Aggregate limit exceeded: " +
				formatAggregateReason(currentTotal, increment, limit.MaxValue, check.Config.Window, string(check.Config.Scope))
		}
	}
	return false, ""
}

// handleFault applies the fail-closed envelope of spec §4.6/§7 kind 4. A
// fault is never persisted; if fail-closed is disabled, it propagates.
func (v *Validator) handleFault(ctx context.Context, req Request, start time.Time, op string, err error) (Result, error) {
	v.Logger.Error("validation fault", "op", op, "tenant_id", req.TenantID, "error", err)
	if !v.FailClosed {
		return Result{}, fault(op, err)
	}
	return Result{
		Allowed:        false,
		ActionID:       "fail-closed-" + uuid.NewString(),
		Reason:         v.FailClosedReason,
		EvalDurationMs: time.Since(start).Milliseconds(),
		Simulated:      req.Simulate,
	}, nil
}

func (v *Validator) notifyBlocked(ctx context.Context, record audit.Record) {
	if v.Notifier == nil || v.TenantStore == nil {
		return
	}
	t, err := v.TenantStore.Get(ctx, record.TenantID)
	if err != nil || !t.NotifyEnabled || t.NotifyEndpoint == "" {
		return
	}
	event := notify.BlockedEvent{
		Event:         "action_blocked",
		ActionID:      record.ActionID,
		TenantID:      record.TenantID,
		PrincipalName: record.PrincipalName,
		ActionType:    record.ActionType,
		Params:        record.Params,
		Reason:        record.Reason,
		Timestamp:     record.Timestamp,
	}
	if err := v.Notifier.Notify(event, t.NotifyEndpoint); err != nil {
		v.Logger.Warn("blocked-event notification failed", "action_id", record.ActionID, "error", err)
	}
}

func formatAggregateReason(total, increment, max float64, window, scope string) string {
	return floatStr(total+increment) + " > " + floatStr(max) + " (window=" + window + ", scope=" + scope + ")"
}

func floatStr(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
