package consent

import (
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/scope"
)

// Outcome es el veredicto del motor para una autorización.
type Outcome string

const (
	// OutcomeApprove: todo lo pedido ya está cubierto (o se cubre por
	// política); la autorización sigue sin prompt.
	OutcomeApprove Outcome = "APPROVE"

	// OutcomeConsentRequired: hay scopes sin cobertura; el caller debe
	// presentar la pantalla de consent con exactamente los faltantes.
	OutcomeConsentRequired Outcome = "CONSENT_REQUIRED"
)

// Razones de decisión, para auditoría y métricas.
const (
	ReasonTrustPolicy = "trust-policy"
	ReasonCachedGrant = "cached-grant"
	ReasonNewScopes   = "new-scopes"
	ReasonEmptyScopes = "empty-request"
)

// Request es lo que el client pidió en esta autorización.
type Request struct {
	Scopes         scope.Set
	ResourceScopes scope.ResourceMap
}

// Decision es el resultado del motor. Cuando Outcome es CONSENT_REQUIRED,
// Missing y MissingResources contienen exactamente lo no cubierto: los
// scopes ya otorgados nunca se vuelven a preguntar (disclosure progresivo).
type Decision struct {
	Outcome          Outcome
	Reason           string
	Missing          scope.Set
	MissingResources scope.ResourceMap
}

// Decide evalúa la request contra el grant vivo (nil si no hay) y la
// política del client. Es una función pura: no toca storage ni red, no
// tiene efectos; los fallos de lookup se degradan en la capa de servicio
// ANTES de llegar acá.
//
// Prioridad: trust override > grant cacheado > consent por faltantes.
// El motor nunca produce DENY: negar es siempre una decisión del usuario.
func Decide(req Request, grant *repository.Grant, policy repository.ClientPolicy) Decision {
	// Request vacía: nada que cubrir, nada que preguntar.
	if req.Scopes.IsEmpty() && req.ResourceScopes.IsEmpty() {
		return Decision{Outcome: OutcomeApprove, Reason: ReasonEmptyScopes}
	}

	// Client first-party: el prompt se omite siempre, incluso sin grant
	// previo. La persistencia del grant corre por cuenta del mutador.
	if policy.SkipConsentScreen {
		return Decision{Outcome: OutcomeApprove, Reason: ReasonTrustPolicy}
	}

	if grant != nil && grant.Covers(req.Scopes, req.ResourceScopes) {
		return Decision{Outcome: OutcomeApprove, Reason: ReasonCachedGrant}
	}

	// Faltantes globales y por resource indicator, calculados de forma
	// independiente: un scope otorgado para un resource no cubre el mismo
	// nombre pedido para otro resource.
	var haveScopes scope.Set
	var haveResources scope.ResourceMap
	if grant != nil {
		haveScopes = grant.Scopes
		haveResources = grant.ResourceScopes
	}
	return Decision{
		Outcome:          OutcomeConsentRequired,
		Reason:           ReasonNewScopes,
		Missing:          req.Scopes.Diff(haveScopes),
		MissingResources: req.ResourceScopes.Diff(haveResources),
	}
}
