package api

import (
	"net/http"
	"time"

	"github.com/Sakethtadimeti/checkin-app/common/clock"
)

// HealthHandler answers liveness probes with the service name and time.
type HealthHandler struct {
	service string
	clock   clock.Clock
}

func NewHealthHandler(service string, clk clock.Clock) *HealthHandler {
	if clk == nil {
		clk = clock.Real()
	}
	return &HealthHandler{service: service, clock: clk}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"service":   h.service,
		"timestamp": h.clock.Now().UTC().Format(time.RFC3339),
	})
}
