package repository

import "context"

// ClientPolicy es la política de confianza por client, read-only para este
// motor. SkipConsentScreen=true marca un client first-party cuyo consent es
// a nivel de política: el prompt interactivo se omite siempre, pero el grant
// se persiste igual (la auto-aprobación no saltea la persistencia).
type ClientPolicy struct {
	ClientID          string   `yaml:"client_id"`
	Name              string   `yaml:"name"`
	SkipConsentScreen bool     `yaml:"skip_consent_screen"`
	AllowedScopes     []string `yaml:"allowed_scopes"`
}

// TrustPolicySource resuelve la política de un client.
//
// La ausencia de registro NO es un error: se retorna la política zero
// (skip=false), que es el default seguro. Un fallo de lookup real se
// reporta como ErrStoreUnavailable y el caller degrada a consent completo.
type TrustPolicySource interface {
	Policy(ctx context.Context, clientID string) (ClientPolicy, error)
}
