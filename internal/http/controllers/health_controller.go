package controllers

import (
	"net/http"

	"github.com/dropDatabas3/consentgate/internal/http/helpers"
	"github.com/dropDatabas3/consentgate/internal/http/services"
)

// HealthController maneja los probes.
type HealthController struct {
	service services.HealthService
}

// NewHealthController crea el controller.
func NewHealthController(service services.HealthService) *HealthController {
	return &HealthController{service: service}
}

// Live maneja GET /healthz.
func (c *HealthController) Live(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, c.service.Live())
}

// Ready maneja GET /readyz.
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	res := c.service.Ready(r.Context())
	status := http.StatusOK
	if !res.OK {
		status = http.StatusServiceUnavailable
	}
	helpers.WriteJSON(w, status, res)
}
