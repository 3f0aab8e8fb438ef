package repository

import (
	"context"
	"time"

	"github.com/dropDatabas3/consentgate/internal/scope"
)

// Grant representa la autorización durable de un usuario hacia un client:
// "U autorizó a C a actuar con estos scopes". A lo sumo un Grant vivo por
// par (user, client). El flujo normal solo agrega scopes (union-merge);
// la única resta posible es la revocación completa vía Delete.
type Grant struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	ClientID       string            `json:"client_id"`
	Scopes         scope.Set         `json:"-"`
	ResourceScopes scope.ResourceMap `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Covers verifica si el grant ya cubre los sets pedidos (global y por resource).
func (g *Grant) Covers(scopes scope.Set, resources scope.ResourceMap) bool {
	if g == nil {
		return scopes.IsEmpty() && resources.IsEmpty()
	}
	return scopes.Diff(g.Scopes).IsEmpty() && resources.Diff(g.ResourceScopes).IsEmpty()
}

// Clone retorna una copia independiente del grant.
func (g *Grant) Clone() *Grant {
	if g == nil {
		return nil
	}
	out := *g
	out.Scopes = g.Scopes.Clone()
	out.ResourceScopes = g.ResourceScopes.Clone()
	return &out
}

// GrantPage es el resultado paginado de ListAll.
type GrantPage struct {
	Grants []Grant
	Total  int
}

// GrantRepository define las operaciones sobre grants persistidos.
//
// CreateOrMerge es el único primitivo de escritura del flujo normal y DEBE
// ser atómico frente a callers concurrentes sobre la misma key: dos merges
// concurrentes con sets disjuntos terminan en la unión de ambos, nunca en
// last-writer-wins.
type GrantRepository interface {
	// Get obtiene el grant de un (user, client). Retorna ErrNotFound si no existe.
	Get(ctx context.Context, userID, clientID string) (*Grant, error)

	// CreateOrMerge crea el grant con exactamente los sets dados, o si ya
	// existe retorna uno cuyos scopes son la unión de existentes y nuevos.
	// Los conflictos de concurrencia se reintentan internamente.
	CreateOrMerge(ctx context.Context, userID, clientID string, newScopes scope.Set, newResources scope.ResourceMap) (*Grant, error)

	// Delete revoca el grant completo. Lo invoca solo el colaborador externo
	// de gestión de consents, nunca el flujo de autorización.
	// Retorna ErrNotFound si no existe.
	Delete(ctx context.Context, userID, clientID string) error

	// ListByUser lista los grants vivos de un usuario.
	ListByUser(ctx context.Context, userID string) ([]Grant, error)

	// ListAll lista grants con paginación (superficie admin).
	ListAll(ctx context.Context, limit, offset int) (GrantPage, error)

	// Ping verifica la disponibilidad del backend.
	Ping(ctx context.Context) error

	// Close libera recursos del adapter.
	Close() error
}
