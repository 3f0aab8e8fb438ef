// Package audit emite los eventos estructurados del flujo de consent que
// consume la observabilidad externa. Cada evento lleva user_id, client_id
// y los scopes involucrados.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/consentgate/internal/observability/logger"
)

// Eventos del flujo de consent.
const (
	EventAutoApprovedByCache       = "auto-approved-by-cache"
	EventAutoApprovedByTrustPolicy = "auto-approved-by-trust-policy"
	EventConsentGrantedNewScopes   = "consent-granted-new-scopes"
	EventConsentDenied             = "consent-denied"
	EventInteractionExpired        = "interaction-expired"
)

// Entry es el contenido común de un evento de auditoría.
type Entry struct {
	UserID         string
	ClientID       string
	InteractionID  string
	Scopes         []string
	ResourceScopes map[string][]string
}

// Log emite el evento por el logger estructurado, canal "audit".
func Log(ctx context.Context, event string, e Entry) {
	fields := []zap.Field{
		zap.String("event", event),
		logger.UserID(e.UserID),
		logger.ClientID(e.ClientID),
	}
	if e.InteractionID != "" {
		fields = append(fields, logger.InteractionID(e.InteractionID))
	}
	if len(e.Scopes) > 0 {
		fields = append(fields, logger.Scopes(e.Scopes))
	}
	if len(e.ResourceScopes) > 0 {
		fields = append(fields, zap.Any("resource_scopes", e.ResourceScopes))
	}
	logger.From(ctx).Named("audit").Info(event, fields...)
}
