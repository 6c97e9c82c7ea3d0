package wire

import (
	"time"

	"github.com/sentinelguard/actiongate/internal/domain/notify"
)

// NotificationPayload is the external JSON body delivered to a generic
// (non-Slack, non-Discord) webhook endpoint on a blocked action.
type NotificationPayload struct {
	Event         string         `json:"event"`
	ActionID      string         `json:"action_id"`
	TenantID      string         `json:"tenant_id"`
	PrincipalName string         `json:"principal_name"`
	ActionType    string         `json:"action_type"`
	Params        map[string]any `json:"params,omitempty"`
	Reason        string         `json:"reason"`
	Timestamp     string         `json:"timestamp"`
}

// FromBlockedEvent converts a domain notify.BlockedEvent into its wire
// form, decoupling the outbound adapter's JSON contract from the
// validator's internal event type.
func FromBlockedEvent(e notify.BlockedEvent) NotificationPayload {
	return NotificationPayload{
		Event:         e.Event,
		ActionID:      e.ActionID,
		TenantID:      e.TenantID,
		PrincipalName: e.PrincipalName,
		ActionType:    e.ActionType,
		Params:        e.Params,
		Reason:        e.Reason,
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339),
	}
}
