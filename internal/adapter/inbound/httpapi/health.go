package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/sentinelguard/actiongate/internal/domain/shutdown"
)

// HealthResponse is the JSON body for /healthz and /readyz.
type HealthResponse struct {
	Status string `json:"status"`
}

// LivenessHandler always reports healthy once the process has started;
// it never consults the shutdown coordinator, since a draining process is
// still alive and still finishing in-flight validations.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, "ok")
	}
}

// ReadinessHandler reports unready once the coordinator has entered the
// draining state, so a load balancer stops sending new requests while
// in-flight validations finish (spec §4.9).
func ReadinessHandler(coordinator *shutdown.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if coordinator != nil && coordinator.Draining() {
			writeHealth(w, http.StatusServiceUnavailable, "draining")
			return
		}
		writeHealth(w, http.StatusOK, "ok")
	}
}

func writeHealth(w http.ResponseWriter, status int, state string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HealthResponse{Status: state})
}
