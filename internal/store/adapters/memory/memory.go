// Package memory implementa GrantRepository in-process.
// Las mutaciones de una misma key se serializan bajo el lock del adapter,
// así CreateOrMerge es un read-merge-write atómico.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/scope"
)

type adapter struct {
	mu     sync.RWMutex
	grants map[string]*repository.Grant // key: userID|clientID
}

// New crea un GrantRepository en memoria.
func New() repository.GrantRepository {
	return &adapter{grants: make(map[string]*repository.Grant)}
}

func key(userID, clientID string) string { return userID + "|" + clientID }

func (a *adapter) Get(_ context.Context, userID, clientID string) (*repository.Grant, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	g, ok := a.grants[key(userID, clientID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return g.Clone(), nil
}

func (a *adapter) CreateOrMerge(_ context.Context, userID, clientID string, newScopes scope.Set, newResources scope.ResourceMap) (*repository.Grant, error) {
	if userID == "" || clientID == "" {
		return nil, repository.ErrInvalidInput
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now().UTC()
	k := key(userID, clientID)

	if existing, ok := a.grants[k]; ok {
		existing.Scopes = existing.Scopes.Union(newScopes)
		existing.ResourceScopes = existing.ResourceScopes.Union(newResources)
		existing.UpdatedAt = now
		return existing.Clone(), nil
	}

	g := &repository.Grant{
		ID:             uuid.NewString(),
		UserID:         userID,
		ClientID:       clientID,
		Scopes:         newScopes.Clone(),
		ResourceScopes: newResources.Clone(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	a.grants[k] = g
	return g.Clone(), nil
}

func (a *adapter) Delete(_ context.Context, userID, clientID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := key(userID, clientID)
	if _, ok := a.grants[k]; !ok {
		return repository.ErrNotFound
	}
	delete(a.grants, k)
	return nil
}

func (a *adapter) ListByUser(_ context.Context, userID string) ([]repository.Grant, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []repository.Grant
	for _, g := range a.grants {
		if g.UserID == userID {
			out = append(out, *g.Clone())
		}
	}
	sortGrants(out)
	return out, nil
}

func (a *adapter) ListAll(_ context.Context, limit, offset int) (repository.GrantPage, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	all := make([]repository.Grant, 0, len(a.grants))
	for _, g := range a.grants {
		all = append(all, *g.Clone())
	}
	sortGrants(all)

	page := repository.GrantPage{Total: len(all)}
	if offset >= len(all) {
		return page, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page.Grants = all[offset:end]
	return page, nil
}

func (a *adapter) Ping(_ context.Context) error { return nil }

func (a *adapter) Close() error { return nil }

// sortGrants ordena por updated_at descendente (los más recientes primero).
func sortGrants(gs []repository.Grant) {
	sort.Slice(gs, func(i, j int) bool {
		if gs[i].UpdatedAt.Equal(gs[j].UpdatedAt) {
			return gs[i].ID < gs[j].ID
		}
		return gs[i].UpdatedAt.After(gs[j].UpdatedAt)
	})
}
