// Package controllers mapea HTTP a los services: decodifica requests,
// traduce errores de service a errores HTTP y serializa respuestas.
package controllers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dropDatabas3/consentgate/internal/http/dto"
	httperr "github.com/dropDatabas3/consentgate/internal/http/errors"
	"github.com/dropDatabas3/consentgate/internal/http/helpers"
	"github.com/dropDatabas3/consentgate/internal/http/services"
	"github.com/dropDatabas3/consentgate/internal/observability/logger"
)

// InteractionController maneja /v1/interactions.
type InteractionController struct {
	service services.InteractionService
}

// NewInteractionController crea el controller.
func NewInteractionController(service services.InteractionService) *InteractionController {
	return &InteractionController{service: service}
}

// Start maneja POST /v1/interactions.
func (c *InteractionController) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("InteractionController.Start"))

	var req dto.StartInteractionRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	resp, err := c.service.Start(ctx, req)
	if err != nil {
		c.handleError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, resp)
}

// Get maneja GET /v1/interactions/{id}.
func (c *InteractionController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("InteractionController.Get"))

	id := chi.URLParam(r, "id")
	resp, err := c.service.Get(ctx, id)
	if err != nil {
		c.handleError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// Decide maneja POST /v1/interactions/{id}/decision.
func (c *InteractionController) Decide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("InteractionController.Decide"))

	id := chi.URLParam(r, "id")
	var req dto.DecisionRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	resp, err := c.service.Decide(ctx, id, req)
	if err != nil {
		c.handleError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// handleError mapea errores de service a respuestas HTTP.
func (c *InteractionController) handleError(w http.ResponseWriter, err error, log *zap.Logger) {
	switch {
	case errors.Is(err, services.ErrMissingParams),
		errors.Is(err, services.ErrInvalidScope),
		errors.Is(err, services.ErrInvalidResource):
		httperr.WriteError(w, httperr.ErrBadRequest.WithDetail(err.Error()))
	case errors.Is(err, services.ErrSessionNotFound):
		httperr.WriteError(w, httperr.ErrNotFound.WithDetail("interaction not found"))
	case errors.Is(err, services.ErrSessionExpired):
		httperr.WriteError(w, httperr.ErrSessionGone)
	case errors.Is(err, services.ErrSessionFinished):
		httperr.WriteError(w, httperr.ErrConflict.WithDetail("interaction already decided"))
	default:
		log.Error("unexpected interaction error", logger.Err(err))
		httperr.WriteError(w, httperr.ErrInternalServerError)
	}
}
