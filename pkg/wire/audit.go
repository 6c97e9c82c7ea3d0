package wire

import (
	"time"

	"github.com/sentinelguard/actiongate/internal/domain/audit"
)

// AuditRecordWire is the JSON representation of one audit.Record returned
// from the admin query surface, mirroring the teacher's AuditRecordDTO.
type AuditRecordWire struct {
	ActionID       string         `json:"action_id"`
	TenantID       string         `json:"tenant_id"`
	PrincipalName  string         `json:"principal_name"`
	ActionType     string         `json:"action_type"`
	Params         map[string]any `json:"params,omitempty"`
	Allowed        bool           `json:"allowed"`
	Reason         string         `json:"reason,omitempty"`
	PolicyVersion  string         `json:"policy_version,omitempty"`
	EvalDurationMs int64          `json:"eval_duration_ms"`
	Timestamp      string         `json:"timestamp"`
}

// FromAuditRecord converts a domain audit.Record into its wire form.
func FromAuditRecord(r audit.Record) AuditRecordWire {
	return AuditRecordWire{
		ActionID:       r.ActionID,
		TenantID:       r.TenantID,
		PrincipalName:  r.PrincipalName,
		ActionType:     r.ActionType,
		Params:         r.Params,
		Allowed:        r.Allowed,
		Reason:         r.Reason,
		PolicyVersion:  r.PolicyVersion,
		EvalDurationMs: r.EvalDurationMs,
		Timestamp:      r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// AuditQueryResponse is the JSON response body for a paginated audit query.
type AuditQueryResponse struct {
	Records    []AuditRecordWire `json:"records"`
	NextCursor string            `json:"next_cursor,omitempty"`
	Count      int               `json:"count"`
}
