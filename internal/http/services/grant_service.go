package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/http/dto"
	"github.com/dropDatabas3/consentgate/internal/observability/logger"
)

// ErrGrantNotFound: no hay grant vivo para el par pedido.
var ErrGrantNotFound = errors.New("grant not found")

// GrantService expone la gestión de grants para el colaborador externo
// de consents: listar y revocar. La revocación es SIEMPRE total; no existe
// la resta parcial de scopes.
type GrantService interface {
	ListByUser(ctx context.Context, userID string) ([]dto.GrantResponse, error)
	Get(ctx context.Context, userID, clientID string) (dto.GrantResponse, error)
	Revoke(ctx context.Context, userID, clientID string) error
	ListAll(ctx context.Context, limit, offset int) (dto.GrantListResponse, error)
}

// GrantDeps dependencias del service.
type GrantDeps struct {
	Grants repository.GrantRepository
}

type grantService struct {
	grants repository.GrantRepository
}

// NewGrantService crea el service.
func NewGrantService(d GrantDeps) GrantService {
	return &grantService{grants: d.Grants}
}

func (s *grantService) ListByUser(ctx context.Context, userID string) ([]dto.GrantResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingParams
	}
	gs, err := s.grants.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("services: list grants: %w", err)
	}
	out := make([]dto.GrantResponse, 0, len(gs))
	for i := range gs {
		out = append(out, grantView(&gs[i]))
	}
	return out, nil
}

func (s *grantService) Get(ctx context.Context, userID, clientID string) (dto.GrantResponse, error) {
	g, err := s.grants.Get(ctx, userID, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return dto.GrantResponse{}, ErrGrantNotFound
		}
		return dto.GrantResponse{}, fmt.Errorf("services: get grant: %w", err)
	}
	return grantView(g), nil
}

func (s *grantService) Revoke(ctx context.Context, userID, clientID string) error {
	if err := s.grants.Delete(ctx, userID, clientID); err != nil {
		if repository.IsNotFound(err) {
			return ErrGrantNotFound
		}
		return fmt.Errorf("services: revoke grant: %w", err)
	}
	logger.From(ctx).Info("grant revoked",
		logger.UserID(userID),
		logger.ClientID(clientID),
	)
	return nil
}

func (s *grantService) ListAll(ctx context.Context, limit, offset int) (dto.GrantListResponse, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	page, err := s.grants.ListAll(ctx, limit, offset)
	if err != nil {
		return dto.GrantListResponse{}, fmt.Errorf("services: list all grants: %w", err)
	}
	out := dto.GrantListResponse{
		Grants: make([]dto.GrantResponse, 0, len(page.Grants)),
		Total:  page.Total,
		Limit:  limit,
		Offset: offset,
	}
	for i := range page.Grants {
		out.Grants = append(out.Grants, grantView(&page.Grants[i]))
	}
	return out, nil
}

func grantView(g *repository.Grant) dto.GrantResponse {
	return dto.GrantResponse{
		ID:             g.ID,
		UserID:         g.UserID,
		ClientID:       g.ClientID,
		Scopes:         g.Scopes.Sorted(),
		ResourceScopes: g.ResourceScopes.ToStrings(),
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
	}
}
