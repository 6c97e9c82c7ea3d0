package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sentinelguard/actiongate/internal/service"
	"github.com/sentinelguard/actiongate/pkg/wire"
)

const maxValidateBodyBytes = 1 << 20 // 1 MiB; a policy evaluation needs no more.

// ValidateHandler serves the synchronous VALIDATE call over HTTP.
type ValidateHandler struct {
	gateway *service.GatewayService
}

// NewValidateHandler builds a ValidateHandler wrapping gateway.
func NewValidateHandler(gateway *service.GatewayService) *ValidateHandler {
	return &ValidateHandler{gateway: gateway}
}

func (h *ValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req wire.ValidateRequestWire
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxValidateBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := h.gateway.Validate(r.Context(), service.ValidateRequest{
		Secret:        req.Secret,
		PrincipalName: req.PrincipalName,
		ActionType:    req.ActionType,
		Params:        req.Params,
		Simulate:      req.Simulate,
	})
	if err != nil {
		if errors.Is(err, service.ErrAuthorizationFailure) {
			writeError(w, http.StatusUnauthorized, "authorization failed")
			return
		}
		logger.Error("validate failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, wire.FromValidatorResult(result))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.ErrorResponseWire{Error: msg})
}
