// Package services contiene la lógica de aplicación detrás de los
// controllers: orquesta motor de decisión, tracker de sesiones, políticas
// de confianza y repositorio de grants.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/consentgate/internal/audit"
	"github.com/dropDatabas3/consentgate/internal/consent"
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/http/dto"
	"github.com/dropDatabas3/consentgate/internal/metrics"
	"github.com/dropDatabas3/consentgate/internal/observability/logger"
	"github.com/dropDatabas3/consentgate/internal/scope"
	"github.com/dropDatabas3/consentgate/internal/session"
	"github.com/dropDatabas3/consentgate/internal/validation"
)

// ReasonStoreDegraded marca una decisión forzada a consent completo porque
// el lookup de grant o de política falló. Fail-safe: nunca auto-aprobamos
// sobre datos que no pudimos leer.
const ReasonStoreDegraded = "store-degraded"

// Errores del flujo de interacción.
var (
	ErrMissingParams   = errors.New("user_id and client_id are required")
	ErrInvalidScope    = errors.New("invalid scope name")
	ErrInvalidResource = errors.New("invalid resource indicator")

	// ErrSessionNotFound: la sesión no existe (o su gracia post-expiración
	// ya venció). El runtime debe reiniciar la autorización.
	ErrSessionNotFound = errors.New("interaction session not found")

	// ErrSessionExpired: la sesión existe pero venció su TTL; la submission
	// llegó tarde.
	ErrSessionExpired = errors.New("interaction session expired")

	// ErrSessionFinished: la sesión ya tiene veredicto (APPROVED o DENIED).
	ErrSessionFinished = errors.New("interaction session already decided")
)

// InteractionService maneja el ciclo de vida de una interacción de consent.
type InteractionService interface {
	// Start crea la sesión y corre el motor de decisión.
	Start(ctx context.Context, req dto.StartInteractionRequest) (dto.InteractionResponse, error)

	// Get retorna la vista actual de la sesión (aplicando expiración lazy).
	Get(ctx context.Context, id string) (dto.InteractionResponse, error)

	// Decide aplica la submission del usuario sobre una sesión en
	// CONSENT_REQUIRED.
	Decide(ctx context.Context, id string, req dto.DecisionRequest) (dto.InteractionResponse, error)
}

// InteractionDeps dependencias del service.
type InteractionDeps struct {
	Grants  repository.GrantRepository
	Trust   repository.TrustPolicySource
	Tracker *session.Tracker
	Mutator *consent.Mutator
}

type interactionService struct {
	grants  repository.GrantRepository
	trust   repository.TrustPolicySource
	tracker *session.Tracker
	mutator *consent.Mutator
}

// NewInteractionService crea el service.
func NewInteractionService(d InteractionDeps) InteractionService {
	return &interactionService{
		grants:  d.Grants,
		trust:   d.Trust,
		tracker: d.Tracker,
		mutator: d.Mutator,
	}
}

func (s *interactionService) Start(ctx context.Context, req dto.StartInteractionRequest) (dto.InteractionResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("InteractionService.Start"))
	start := time.Now()

	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.ClientID) == "" {
		return dto.InteractionResponse{}, ErrMissingParams
	}
	if bad, ok := validation.ValidScopeNames(req.Scopes); !ok {
		return dto.InteractionResponse{}, fmt.Errorf("%w: %q", ErrInvalidScope, bad)
	}
	for res, names := range req.ResourceScopes {
		if !validation.ValidResourceIndicator(res) {
			return dto.InteractionResponse{}, fmt.Errorf("%w: %q", ErrInvalidResource, res)
		}
		if bad, ok := validation.ValidScopeNames(names); !ok {
			return dto.InteractionResponse{}, fmt.Errorf("%w: %q (resource %s)", ErrInvalidScope, bad, res)
		}
	}

	requested := scope.NewSet(req.Scopes...)
	requestedRes := scope.NewResourceMap(req.ResourceScopes)

	sess, err := s.tracker.Start(ctx, session.StartParams{
		UserID:                  req.UserID,
		ClientID:                req.ClientID,
		RequestedScopes:         requested,
		RequestedResourceScopes: requestedRes,
		PromptReasons:           req.PromptReasons,
	})
	if err != nil {
		return dto.InteractionResponse{}, fmt.Errorf("services: start session: %w", err)
	}

	// Lookups con degradación fail-safe: cualquier fallo de lectura fuerza
	// consent completo, jamás una auto-aprobación sobre datos desconocidos.
	degraded := false

	policy, err := s.trust.Policy(ctx, req.ClientID)
	if err != nil {
		log.Warn("trust policy lookup failed, degrading to full consent", logger.Err(err), logger.ClientID(req.ClientID))
		metrics.ObserveStoreDegradation()
		degraded = true
		policy = repository.ClientPolicy{}
	}

	var grant *repository.Grant
	g, err := s.grants.Get(ctx, req.UserID, req.ClientID)
	switch {
	case err == nil:
		grant = g
	case repository.IsNotFound(err):
		// primer encuentro user/client: no hay nada otorgado
	default:
		log.Warn("grant lookup failed, degrading to full consent", logger.Err(err))
		metrics.ObserveStoreDegradation()
		degraded = true
	}

	var reason string
	if degraded {
		reason = ReasonStoreDegraded
		if err := sess.MarkConsentRequired(requested, requestedRes); err != nil {
			return dto.InteractionResponse{}, err
		}
	} else {
		decision := consent.Decide(consent.Request{Scopes: requested, ResourceScopes: requestedRes}, grant, policy)
		reason = decision.Reason

		switch decision.Outcome {
		case consent.OutcomeApprove:
			if _, err := s.applyAuto(ctx, sess, decision, requested, requestedRes); err != nil {
				return dto.InteractionResponse{}, err
			}
			if err := sess.MarkApproved(); err != nil {
				return dto.InteractionResponse{}, err
			}
		default:
			if err := sess.MarkConsentRequired(decision.Missing, decision.MissingResources); err != nil {
				return dto.InteractionResponse{}, err
			}
		}
	}

	if err := s.tracker.Save(ctx, sess); err != nil {
		return dto.InteractionResponse{}, fmt.Errorf("services: save session: %w", err)
	}

	metrics.ObserveDecision(string(sess.State), reason)
	metrics.ObserveDecisionDuration(time.Since(start).Seconds())
	log.Info("interaction started",
		logger.InteractionID(sess.ID),
		logger.UserID(sess.UserID),
		logger.ClientID(sess.ClientID),
		logger.State(string(sess.State)),
		logger.Outcome(reason),
	)

	resp := sessionView(sess)
	resp.Reason = reason
	return resp, nil
}

// applyAuto persiste lo que una aprobación automática otorga. Una aprobación
// por trust policy mergea la request completa; un cache hit no escribe nada.
func (s *interactionService) applyAuto(ctx context.Context, sess *session.Session, d consent.Decision, requested scope.Set, requestedRes scope.ResourceMap) (*repository.Grant, error) {
	p := consent.ApplyParams{
		UserID:        sess.UserID,
		ClientID:      sess.ClientID,
		InteractionID: sess.ID,
		Reason:        d.Reason,
	}
	if d.Reason == consent.ReasonTrustPolicy {
		p.Scopes = requested
		p.ResourceScopes = requestedRes
	}
	g, err := s.mutator.Apply(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("services: apply auto approval: %w", err)
	}
	return g, nil
}

func (s *interactionService) Get(ctx context.Context, id string) (dto.InteractionResponse, error) {
	sess, err := s.tracker.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return dto.InteractionResponse{}, ErrSessionNotFound
		}
		return dto.InteractionResponse{}, fmt.Errorf("services: get session: %w", err)
	}
	return sessionView(sess), nil
}

func (s *interactionService) Decide(ctx context.Context, id string, req dto.DecisionRequest) (dto.InteractionResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("InteractionService.Decide"))

	sess, err := s.tracker.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return dto.InteractionResponse{}, ErrSessionNotFound
		}
		return dto.InteractionResponse{}, fmt.Errorf("services: get session: %w", err)
	}

	switch sess.State {
	case session.StateExpired:
		return dto.InteractionResponse{}, ErrSessionExpired
	case session.StateApproved, session.StateDenied:
		return dto.InteractionResponse{}, ErrSessionFinished
	case session.StateConsentRequired:
		// sigue abajo
	default:
		// STARTED: el motor todavía no corrió o la sesión quedó a medias;
		// una submission acá no tiene pantalla que la respalde.
		return dto.InteractionResponse{}, ErrSessionFinished
	}

	if !req.Approved {
		if err := sess.MarkDenied(); err != nil {
			return dto.InteractionResponse{}, err
		}
		if err := s.tracker.Save(ctx, sess); err != nil {
			return dto.InteractionResponse{}, fmt.Errorf("services: save session: %w", err)
		}
		audit.Log(ctx, audit.EventConsentDenied, audit.Entry{
			UserID:         sess.UserID,
			ClientID:       sess.ClientID,
			InteractionID:  sess.ID,
			Scopes:         sess.MissingScopes.Sorted(),
			ResourceScopes: sess.MissingResourceScopes.ToStrings(),
		})
		metrics.ObserveDecision(string(session.StateDenied), "user-denied")
		log.Info("consent denied",
			logger.InteractionID(sess.ID),
			logger.UserID(sess.UserID),
			logger.ClientID(sess.ClientID),
		)
		return sessionView(sess), nil
	}

	// Aprobación explícita: se mergea EXACTAMENTE lo que se mostró
	// (Missing*), nunca el requested completo recalculado.
	if _, err := s.mutator.Apply(ctx, consent.ApplyParams{
		UserID:         sess.UserID,
		ClientID:       sess.ClientID,
		InteractionID:  sess.ID,
		Scopes:         sess.MissingScopes,
		ResourceScopes: sess.MissingResourceScopes,
		Reason:         consent.ReasonNewScopes,
	}); err != nil {
		return dto.InteractionResponse{}, fmt.Errorf("services: apply consent: %w", err)
	}
	if err := sess.MarkApproved(); err != nil {
		return dto.InteractionResponse{}, err
	}
	if err := s.tracker.Save(ctx, sess); err != nil {
		return dto.InteractionResponse{}, fmt.Errorf("services: save session: %w", err)
	}

	metrics.ObserveDecision(string(session.StateApproved), "user-approved")
	log.Info("consent granted",
		logger.InteractionID(sess.ID),
		logger.UserID(sess.UserID),
		logger.ClientID(sess.ClientID),
		logger.ScopesAdded(sess.MissingScopes.Sorted()),
	)
	return sessionView(sess), nil
}

// sessionView arma la vista JSON de una sesión.
func sessionView(s *session.Session) dto.InteractionResponse {
	resp := dto.InteractionResponse{
		ID:                      s.ID,
		UserID:                  s.UserID,
		ClientID:                s.ClientID,
		State:                   string(s.State),
		RequestedScopes:         s.RequestedScopes.Sorted(),
		RequestedResourceScopes: s.RequestedResourceScopes.ToStrings(),
		CreatedAt:               s.CreatedAt,
		ExpiresAt:               s.ExpiresAt,
	}
	if s.State == session.StateConsentRequired {
		resp.MissingScopes = s.MissingScopes.Sorted()
		resp.MissingResourceScopes = s.MissingResourceScopes.ToStrings()
	}
	return resp
}
