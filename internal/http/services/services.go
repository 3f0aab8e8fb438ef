package services

import (
	"github.com/dropDatabas3/consentgate/internal/cache"
	"github.com/dropDatabas3/consentgate/internal/consent"
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/session"
)

// Deps contiene las dependencias base para crear los services.
// Todas las dependencias externas se inyectan acá.
type Deps struct {
	Grants  repository.GrantRepository
	Trust   repository.TrustPolicySource
	Tracker *session.Tracker
	Cache   cache.Client
}

// Services agrupa los sub-services por dominio.
type Services struct {
	Interactions InteractionService
	Grants       GrantService
	Health       HealthService
}

// New arma el árbol de services (composition root).
func New(d Deps) Services {
	mutator := consent.NewMutator(consent.MutatorDeps{Grants: d.Grants})
	return Services{
		Interactions: NewInteractionService(InteractionDeps{
			Grants:  d.Grants,
			Trust:   d.Trust,
			Tracker: d.Tracker,
			Mutator: mutator,
		}),
		Grants: NewGrantService(GrantDeps{Grants: d.Grants}),
		Health: NewHealthService(HealthDeps{Grants: d.Grants, Cache: d.Cache}),
	}
}
