package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	httperr "github.com/dropDatabas3/consentgate/internal/http/errors"
	"github.com/dropDatabas3/consentgate/internal/http/helpers"
	"github.com/dropDatabas3/consentgate/internal/http/services"
	"github.com/dropDatabas3/consentgate/internal/observability/logger"
)

// GrantController maneja /v1/grants y la superficie admin.
type GrantController struct {
	service services.GrantService
}

// NewGrantController crea el controller.
func NewGrantController(service services.GrantService) *GrantController {
	return &GrantController{service: service}
}

// List maneja GET /v1/grants?user_id=.
func (c *GrantController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("GrantController.List"))

	grants, err := c.service.ListByUser(ctx, r.URL.Query().Get("user_id"))
	if err != nil {
		c.handleError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, grants)
}

// ListByUser maneja GET /v1/grants/{userID}.
func (c *GrantController) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("GrantController.ListByUser"))

	grants, err := c.service.ListByUser(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		c.handleError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, grants)
}

// Get maneja GET /v1/grants/{userID}/{clientID}.
func (c *GrantController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("GrantController.Get"))

	g, err := c.service.Get(ctx, chi.URLParam(r, "userID"), chi.URLParam(r, "clientID"))
	if err != nil {
		c.handleError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, g)
}

// Revoke maneja DELETE /v1/grants/{userID}/{clientID}. La revocación es
// total: borra el grant completo del par.
func (c *GrantController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("GrantController.Revoke"))

	if err := c.service.Revoke(ctx, chi.URLParam(r, "userID"), chi.URLParam(r, "clientID")); err != nil {
		c.handleError(w, err, log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAll maneja GET /admin/grants?limit=&offset=.
func (c *GrantController) ListAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("GrantController.ListAll"))

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	page, err := c.service.ListAll(ctx, limit, offset)
	if err != nil {
		c.handleError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, page)
}

func (c *GrantController) handleError(w http.ResponseWriter, err error, log *zap.Logger) {
	switch {
	case errors.Is(err, services.ErrMissingParams):
		httperr.WriteError(w, httperr.ErrBadRequest.WithDetail(err.Error()))
	case errors.Is(err, services.ErrGrantNotFound):
		httperr.WriteError(w, httperr.ErrNotFound.WithDetail("grant not found"))
	case errors.Is(err, repository.ErrStoreUnavailable):
		// la superficie de grants no tiene degradación: un backend caído es 503
		log.Warn("grant store unavailable", logger.Err(err))
		httperr.WriteError(w, httperr.ErrServiceUnavailable)
	default:
		log.Error("unexpected grant error", logger.Err(err))
		httperr.WriteError(w, httperr.ErrInternalServerError)
	}
}
