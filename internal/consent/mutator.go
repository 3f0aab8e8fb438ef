package consent

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/consentgate/internal/audit"
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/metrics"
	"github.com/dropDatabas3/consentgate/internal/scope"
)

// MutatorDeps dependencias del mutador.
type MutatorDeps struct {
	Grants repository.GrantRepository
}

// Mutator persiste el resultado de una decisión aprobada. Es el único
// camino de escritura del flujo de autorización: siempre union-merge,
// nunca resta ni reemplaza.
type Mutator struct {
	grants repository.GrantRepository
}

// NewMutator crea el mutador.
func NewMutator(d MutatorDeps) *Mutator {
	return &Mutator{grants: d.Grants}
}

// ApplyParams describe qué se aprobó y por qué.
type ApplyParams struct {
	UserID        string
	ClientID      string
	InteractionID string

	// Scopes y ResourceScopes son exactamente lo que se aprueba en esta
	// mutación: los faltantes que el usuario aceptó, o la request completa
	// cuando la aprobación vino por trust policy.
	Scopes         scope.Set
	ResourceScopes scope.ResourceMap

	// Reason es la razón de la decisión (ReasonTrustPolicy, ReasonCachedGrant
	// o ReasonNewScopes); determina el evento de auditoría emitido.
	Reason string
}

// Apply persiste los scopes aprobados vía CreateOrMerge y emite el evento
// de auditoría correspondiente. Una aprobación por grant cacheado o con
// sets vacíos no escribe nada (y jamás crea un grant vacío); solo audita.
func (m *Mutator) Apply(ctx context.Context, p ApplyParams) (*repository.Grant, error) {
	entry := audit.Entry{
		UserID:         p.UserID,
		ClientID:       p.ClientID,
		InteractionID:  p.InteractionID,
		Scopes:         p.Scopes.Sorted(),
		ResourceScopes: p.ResourceScopes.ToStrings(),
	}

	if p.Reason == ReasonCachedGrant || p.Reason == ReasonEmptyScopes {
		if p.Reason == ReasonCachedGrant {
			audit.Log(ctx, audit.EventAutoApprovedByCache, entry)
		}
		return nil, nil
	}

	if p.Scopes.IsEmpty() && p.ResourceScopes.IsEmpty() {
		// Trust policy sobre una request vacía: nada que persistir.
		if p.Reason == ReasonTrustPolicy {
			audit.Log(ctx, audit.EventAutoApprovedByTrustPolicy, entry)
		}
		return nil, nil
	}

	g, err := m.grants.CreateOrMerge(ctx, p.UserID, p.ClientID, p.Scopes, p.ResourceScopes)
	if err != nil {
		return nil, fmt.Errorf("consent: merge grant: %w", err)
	}
	metrics.ObserveMerge(g.UpdatedAt.Equal(g.CreatedAt))

	switch p.Reason {
	case ReasonTrustPolicy:
		audit.Log(ctx, audit.EventAutoApprovedByTrustPolicy, entry)
	default:
		audit.Log(ctx, audit.EventConsentGrantedNewScopes, entry)
	}
	return g, nil
}
