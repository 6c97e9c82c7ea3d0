package wire

import "github.com/sentinelguard/actiongate/internal/domain/validator"

// ValidateRequestWire is the JSON body the façade's validate endpoint
// accepts. Secret is the caller's credential, resolved to a tenant before
// the underlying policy evaluation runs.
type ValidateRequestWire struct {
	Secret        string         `json:"secret"`
	PrincipalName string         `json:"principal_name"`
	ActionType    string         `json:"action_type"`
	Params        map[string]any `json:"params,omitempty"`
	Simulate      bool           `json:"simulate,omitempty"`
}

// ValidateResponseWire is the JSON body returned for a validate call.
type ValidateResponseWire struct {
	Allowed        bool   `json:"allowed"`
	ActionID       string `json:"action_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
	PolicyVersion  string `json:"policy_version,omitempty"`
	EvalDurationMs int64  `json:"eval_duration_ms"`
	Simulated      bool   `json:"simulated,omitempty"`
}

// FromValidatorResult converts a validator.Result into its wire form.
func FromValidatorResult(r validator.Result) ValidateResponseWire {
	return ValidateResponseWire{
		Allowed:        r.Allowed,
		ActionID:       r.ActionID,
		Reason:         r.Reason,
		PolicyVersion:  r.PolicyVersion,
		EvalDurationMs: r.EvalDurationMs,
		Simulated:      r.Simulated,
	}
}

// ErrorResponseWire is the JSON body for a non-2xx façade response.
type ErrorResponseWire struct {
	Error string `json:"error"`
}
