package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/consentgate/internal/audit"
	"github.com/dropDatabas3/consentgate/internal/cache"
	"github.com/dropDatabas3/consentgate/internal/metrics"
	"github.com/dropDatabas3/consentgate/internal/observability/logger"
	"github.com/dropDatabas3/consentgate/internal/scope"
	"github.com/dropDatabas3/consentgate/internal/security/secretbox"
	tokens "github.com/dropDatabas3/consentgate/internal/security/token"
)

const cacheKeyPrefix = "intx:"

// expiryGrace: las sesiones quedan en el cache un rato después de vencer,
// así una submission tardía encuentra la sesión EXPIRED (y su audit event)
// en vez de un miss silencioso. Pasada la gracia, el miss equivale a EXPIRED.
const expiryGrace = 5 * time.Minute

// Sealer sella/abre payloads de sesión en reposo. *secretbox.Box lo implementa.
type Sealer interface {
	Seal(plain []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// TrackerDeps dependencias del tracker.
type TrackerDeps struct {
	Cache cache.Client

	// Box opcional: si está, los payloads se cifran antes de ir al cache.
	// Recomendado cuando el backend es redis compartido.
	Box *secretbox.Box

	// TTL de vida de una sesión. Default: 10m.
	TTL time.Duration
}

// Tracker administra sesiones de interacción sobre el cache.
type Tracker struct {
	cache  cache.Client
	sealer Sealer
	ttl    time.Duration
}

// NewTracker crea el tracker.
func NewTracker(d TrackerDeps) *Tracker {
	ttl := d.TTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	t := &Tracker{cache: d.Cache, ttl: ttl}
	if d.Box != nil {
		t.sealer = d.Box
	}
	return t
}

// StartParams datos para crear una sesión.
type StartParams struct {
	UserID                  string
	ClientID                string
	RequestedScopes         scope.Set
	RequestedResourceScopes scope.ResourceMap
	PromptReasons           []string
}

// Start crea y persiste una sesión nueva en STARTED.
func (t *Tracker) Start(ctx context.Context, p StartParams) (*Session, error) {
	now := time.Now().UTC()
	s := &Session{
		ID:                      uuid.NewString(),
		UserID:                  p.UserID,
		ClientID:                p.ClientID,
		RequestedScopes:         p.RequestedScopes.Clone(),
		RequestedResourceScopes: p.RequestedResourceScopes.Clone(),
		PromptReasons:           p.PromptReasons,
		State:                   StateStarted,
		CreatedAt:               now,
		ExpiresAt:               now.Add(t.ttl),
	}
	if err := t.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get recupera una sesión. Si el TTL venció y la sesión no era terminal,
// la transiciona a EXPIRED, la persiste y emite el evento de expiración;
// el caller decide qué hacer con una sesión terminal.
func (t *Tracker) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := t.cache.Get(ctx, cacheKey(id))
	if cache.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: cache get: %w", err)
	}

	s, err := t.decode(raw)
	if err != nil {
		return nil, err
	}

	if !s.Terminal() && s.ExpiredAt(time.Now().UTC()) {
		_ = s.MarkExpired()
		if err := t.Save(ctx, s); err != nil {
			logger.From(ctx).Warn("failed to persist expired session", logger.Err(err), logger.InteractionID(s.ID))
		}
		metrics.ObserveExpiry()
		audit.Log(ctx, audit.EventInteractionExpired, audit.Entry{
			UserID:        s.UserID,
			ClientID:      s.ClientID,
			InteractionID: s.ID,
			Scopes:        s.RequestedScopes.Sorted(),
		})
	}
	return s, nil
}

// Save persiste la sesión con TTL hasta expiración + gracia.
func (t *Tracker) Save(ctx context.Context, s *Session) error {
	raw, err := t.encode(s)
	if err != nil {
		return err
	}
	ttl := time.Until(s.ExpiresAt) + expiryGrace
	if ttl <= 0 {
		ttl = expiryGrace
	}
	if err := t.cache.Set(ctx, cacheKey(s.ID), raw, ttl); err != nil {
		return fmt.Errorf("session: cache set: %w", err)
	}
	return nil
}

// Delete descarta la sesión (garbage collection explícita post-terminal).
func (t *Tracker) Delete(ctx context.Context, id string) error {
	return t.cache.Delete(ctx, cacheKey(id))
}

// cacheKey hashea el interaction ID antes de usarlo como key.
func cacheKey(id string) string {
	return cacheKeyPrefix + tokens.SHA256Base64URL(id)
}

// record es la forma serializada de la sesión en el cache.
type record struct {
	ID                    string              `json:"id"`
	UserID                string              `json:"user_id"`
	ClientID              string              `json:"client_id"`
	RequestedScopes       []string            `json:"requested_scopes,omitempty"`
	RequestedResScopes    map[string][]string `json:"requested_resource_scopes,omitempty"`
	PromptReasons         []string            `json:"prompt_reasons,omitempty"`
	State                 State               `json:"state"`
	MissingScopes         []string            `json:"missing_scopes,omitempty"`
	MissingResourceScopes map[string][]string `json:"missing_resource_scopes,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	ExpiresAt             time.Time           `json:"expires_at"`
}

func (t *Tracker) encode(s *Session) (string, error) {
	rec := record{
		ID:                    s.ID,
		UserID:                s.UserID,
		ClientID:              s.ClientID,
		RequestedScopes:       s.RequestedScopes.Sorted(),
		RequestedResScopes:    s.RequestedResourceScopes.ToStrings(),
		PromptReasons:         s.PromptReasons,
		State:                 s.State,
		MissingScopes:         s.MissingScopes.Sorted(),
		MissingResourceScopes: s.MissingResourceScopes.ToStrings(),
		CreatedAt:             s.CreatedAt,
		ExpiresAt:             s.ExpiresAt,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("session: encode: %w", err)
	}
	if t.sealer != nil {
		return t.sealer.Seal(b)
	}
	return string(b), nil
}

func (t *Tracker) decode(raw string) (*Session, error) {
	b := []byte(raw)
	if t.sealer != nil {
		var err error
		if b, err = t.sealer.Open(raw); err != nil {
			return nil, fmt.Errorf("session: unseal: %w", err)
		}
	}
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return &Session{
		ID:                      rec.ID,
		UserID:                  rec.UserID,
		ClientID:                rec.ClientID,
		RequestedScopes:         scope.NewSet(rec.RequestedScopes...),
		RequestedResourceScopes: scope.NewResourceMap(rec.RequestedResScopes),
		PromptReasons:           rec.PromptReasons,
		State:                   rec.State,
		MissingScopes:           scope.NewSet(rec.MissingScopes...),
		MissingResourceScopes:   scope.NewResourceMap(rec.MissingResourceScopes),
		CreatedAt:               rec.CreatedAt,
		ExpiresAt:               rec.ExpiresAt,
	}, nil
}
