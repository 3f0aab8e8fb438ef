// Package router arma el árbol de rutas del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/consentgate/internal/http/controllers"
	"github.com/dropDatabas3/consentgate/internal/http/middlewares"
	"github.com/dropDatabas3/consentgate/internal/http/services"
)

// Deps dependencias para armar el router.
type Deps struct {
	Services services.Services

	// ServiceAuth protege la superficie /v1 (runtime de autorización).
	ServiceAuth middlewares.Middleware

	// AdminAuth protege la superficie /admin (colaborador de gestión).
	AdminAuth middlewares.Middleware

	// Metrics es el handler de /metrics (nil = no se expone).
	Metrics http.Handler
}

// New construye el router con todas las rutas y middlewares.
func New(d Deps) http.Handler {
	interactions := controllers.NewInteractionController(d.Services.Interactions)
	grants := controllers.NewGrantController(d.Services.Grants)
	health := controllers.NewHealthController(d.Services.Health)

	r := chi.NewRouter()

	// Dentro del mux para poder etiquetar por route pattern.
	r.Use(middlewares.WithMetrics())

	// Probes y métricas: sin auth.
	r.Get("/healthz", health.Live)
	r.Get("/readyz", health.Ready)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	// Superficie runtime: la consume el flujo de autorización OIDC.
	r.Route("/v1", func(v1 chi.Router) {
		if d.ServiceAuth != nil {
			v1.Use(d.ServiceAuth)
		}
		v1.Post("/interactions", interactions.Start)
		v1.Get("/interactions/{id}", interactions.Get)
		v1.Post("/interactions/{id}/decision", interactions.Decide)

		v1.Get("/grants", grants.List)
		v1.Get("/grants/{userID}", grants.ListByUser)
		v1.Get("/grants/{userID}/{clientID}", grants.Get)
		v1.Delete("/grants/{userID}/{clientID}", grants.Revoke)
	})

	// Superficie admin: listado global paginado.
	r.Route("/admin", func(adm chi.Router) {
		if d.AdminAuth != nil {
			adm.Use(d.AdminAuth)
		}
		adm.Get("/grants", grants.ListAll)
	})

	// Middlewares globales (el primero de la lista es el más externo).
	return middlewares.Chain(r,
		middlewares.WithRecover(),
		middlewares.WithRequestID(),
		middlewares.WithLogging(),
	)
}
