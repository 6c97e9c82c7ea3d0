// Package audit contains the audit record model and the store ports used
// by the validator's append-only write path and by an (out-of-scope) admin
// query surface.
package audit

import "time"

// Record is one immutable audit record (spec §3). It is created exactly
// once per non-simulated validation and never mutated or deleted by the
// core.
type Record struct {
	ActionID      string
	TenantID      string
	PrincipalName string
	ActionType    string
	// Params is the request's structured payload, captured verbatim.
	Params map[string]any
	Allowed       bool
	// Reason is set only for reject decisions.
	Reason string
	// PolicyVersion is recorded at decision time; empty when no policy was
	// active.
	PolicyVersion string
	EvalDurationMs int64
	Timestamp      time.Time
}
