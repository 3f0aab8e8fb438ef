// Package dto define los contratos JSON de la API.
package dto

import "time"

// StartInteractionRequest es el pedido del runtime al iniciar una autorización.
type StartInteractionRequest struct {
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`

	// Scopes pedidos sin resource indicator (forma wire: lista).
	Scopes []string `json:"scopes,omitempty"`

	// ResourceScopes: scopes pedidos por resource indicator (RFC 8707).
	ResourceScopes map[string][]string `json:"resource_scopes,omitempty"`

	// PromptReasons: razones por las que el runtime ya decidió promptear
	// (p.ej. prompt=consent). Se conservan en la sesión, no alteran la decisión.
	PromptReasons []string `json:"prompt_reasons,omitempty"`
}

// InteractionResponse es la vista de una sesión de interacción.
type InteractionResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`
	State    string `json:"state"`

	RequestedScopes         []string            `json:"requested_scopes,omitempty"`
	RequestedResourceScopes map[string][]string `json:"requested_resource_scopes,omitempty"`

	// Missing*: presente solo en CONSENT_REQUIRED; es exactamente lo que
	// la pantalla de consent debe mostrar.
	MissingScopes         []string            `json:"missing_scopes,omitempty"`
	MissingResourceScopes map[string][]string `json:"missing_resource_scopes,omitempty"`

	// Reason de la última decisión automática (trust-policy | cached-grant |
	// new-scopes | empty-request). Vacío hasta que el motor corre.
	Reason string `json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DecisionRequest es la submission del usuario desde la pantalla de consent.
type DecisionRequest struct {
	// Approved: true = el usuario aceptó los scopes mostrados, false = negó.
	// La negación no persiste nada y no toca grants previos.
	Approved bool `json:"approved"`
}
