// Package session modela la sesión de interacción: el estado transitorio de
// UN intento de autorización. La sesión vive en el cache con TTL acotado,
// nunca se persiste más allá del flujo y es propiedad exclusiva del intento
// que la creó.
package session

import (
	"errors"
	"time"

	"github.com/dropDatabas3/consentgate/internal/scope"
)

// State es el estado de la máquina de la sesión.
type State string

const (
	StateStarted         State = "STARTED"
	StateConsentRequired State = "CONSENT_REQUIRED"
	StateApproved        State = "APPROVED"
	StateDenied          State = "DENIED"
	StateExpired         State = "EXPIRED"
)

var (
	// ErrNotFound indica sesión inexistente, terminal o expirada cuando
	// llega una submission. El caller debe reiniciar la autorización.
	ErrNotFound = errors.New("interaction session not found")

	// ErrInvalidTransition indica una transición fuera de la máquina de estados.
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// Session es el estado de un intento de autorización en vuelo.
type Session struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`

	RequestedScopes         scope.Set         `json:"-"`
	RequestedResourceScopes scope.ResourceMap `json:"-"`
	PromptReasons           []string          `json:"prompt_reasons,omitempty"`

	State State `json:"state"`

	// Missing*: exactamente lo que se mostró al usuario en CONSENT_REQUIRED.
	// La aprobación explícita mergea ESTO, no el requested completo.
	MissingScopes         scope.Set         `json:"-"`
	MissingResourceScopes scope.ResourceMap `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Terminal verifica si la sesión ya no admite transiciones.
func (s *Session) Terminal() bool {
	switch s.State {
	case StateApproved, StateDenied, StateExpired:
		return true
	}
	return false
}

// ExpiredAt verifica si el TTL venció al momento dado.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// MarkConsentRequired registra los items faltantes que se muestran al usuario.
// Solo válido desde STARTED.
func (s *Session) MarkConsentRequired(missing scope.Set, missingRes scope.ResourceMap) error {
	if s.State != StateStarted {
		return ErrInvalidTransition
	}
	s.State = StateConsentRequired
	s.MissingScopes = missing.Clone()
	s.MissingResourceScopes = missingRes.Clone()
	return nil
}

// MarkApproved transiciona a APPROVED (terminal).
// Válido desde STARTED (auto-aprobación) o CONSENT_REQUIRED (aprobación explícita).
func (s *Session) MarkApproved() error {
	if s.State != StateStarted && s.State != StateConsentRequired {
		return ErrInvalidTransition
	}
	s.State = StateApproved
	return nil
}

// MarkDenied transiciona a DENIED (terminal). Solo desde CONSENT_REQUIRED.
func (s *Session) MarkDenied() error {
	if s.State != StateConsentRequired {
		return ErrInvalidTransition
	}
	s.State = StateDenied
	return nil
}

// MarkExpired transiciona a EXPIRED (terminal) desde cualquier estado no terminal.
func (s *Session) MarkExpired() error {
	if s.Terminal() {
		return ErrInvalidTransition
	}
	s.State = StateExpired
	return nil
}
