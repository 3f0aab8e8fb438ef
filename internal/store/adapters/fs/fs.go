// Package fs implementa GrantRepository sobre archivos JSON.
//
// Layout: <root>/grants/<enc(userID)>/<enc(clientID)>.json, con los IDs
// codificados en base64url para que nunca formen paths. Cada mutación es
// read-merge-write bajo un lock por key, y el write es atómico
// (tmp + fsync + rename), así un crash no deja grants a medio escribir.
package fs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/scope"
	"github.com/dropDatabas3/consentgate/internal/util/atomicwrite"
)

type adapter struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex // lock por (user, client)
}

// New crea un GrantRepository sobre el directorio dado.
func New(root string) (repository.GrantRepository, error) {
	dir := filepath.Join(root, "grants")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("fs: mkdir %s: %w", dir, err)
	}
	return &adapter{root: root, locks: make(map[string]*sync.Mutex)}, nil
}

// grantRecord es la forma persistida del grant.
type grantRecord struct {
	ID             string              `json:"id"`
	UserID         string              `json:"user_id"`
	ClientID       string              `json:"client_id"`
	Scopes         []string            `json:"scopes"`
	ResourceScopes map[string][]string `json:"resource_scopes,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func toRecord(g *repository.Grant) grantRecord {
	return grantRecord{
		ID:             g.ID,
		UserID:         g.UserID,
		ClientID:       g.ClientID,
		Scopes:         g.Scopes.Sorted(),
		ResourceScopes: g.ResourceScopes.ToStrings(),
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
	}
}

func fromRecord(rec grantRecord) *repository.Grant {
	return &repository.Grant{
		ID:             rec.ID,
		UserID:         rec.UserID,
		ClientID:       rec.ClientID,
		Scopes:         scope.NewSet(rec.Scopes...),
		ResourceScopes: scope.NewResourceMap(rec.ResourceScopes),
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func enc(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func dec(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (a *adapter) path(userID, clientID string) string {
	return filepath.Join(a.root, "grants", enc(userID), enc(clientID)+".json")
}

// keyLock retorna el mutex de la key, creándolo si no existe.
func (a *adapter) keyLock(userID, clientID string) *sync.Mutex {
	k := userID + "|" + clientID
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[k]
	if !ok {
		l = &sync.Mutex{}
		a.locks[k] = l
	}
	return l
}

func (a *adapter) read(path string) (*repository.Grant, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("fs: read grant: %w", err)
	}
	var rec grantRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("fs: decode grant %s: %w", path, err)
	}
	return fromRecord(rec), nil
}

func (a *adapter) write(g *repository.Grant) error {
	b, err := json.MarshalIndent(toRecord(g), "", "  ")
	if err != nil {
		return fmt.Errorf("fs: encode grant: %w", err)
	}
	return atomicwrite.AtomicWriteFile(a.path(g.UserID, g.ClientID), b, 0600)
}

func (a *adapter) Get(_ context.Context, userID, clientID string) (*repository.Grant, error) {
	return a.read(a.path(userID, clientID))
}

func (a *adapter) CreateOrMerge(_ context.Context, userID, clientID string, newScopes scope.Set, newResources scope.ResourceMap) (*repository.Grant, error) {
	if userID == "" || clientID == "" {
		return nil, repository.ErrInvalidInput
	}

	l := a.keyLock(userID, clientID)
	l.Lock()
	defer l.Unlock()

	now := time.Now().UTC()
	g, err := a.read(a.path(userID, clientID))
	switch {
	case err == nil:
		g.Scopes = g.Scopes.Union(newScopes)
		g.ResourceScopes = g.ResourceScopes.Union(newResources)
		g.UpdatedAt = now
	case repository.IsNotFound(err):
		g = &repository.Grant{
			ID:             uuid.NewString(),
			UserID:         userID,
			ClientID:       clientID,
			Scopes:         newScopes.Clone(),
			ResourceScopes: newResources.Clone(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	default:
		return nil, err
	}

	if err := a.write(g); err != nil {
		return nil, err
	}
	return g, nil
}

func (a *adapter) Delete(_ context.Context, userID, clientID string) error {
	l := a.keyLock(userID, clientID)
	l.Lock()
	defer l.Unlock()

	path := a.path(userID, clientID)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("fs: delete grant: %w", err)
	}
	// si era el último grant del usuario, limpiar el directorio vacío
	_ = os.Remove(filepath.Dir(path))
	return nil
}

func (a *adapter) ListByUser(_ context.Context, userID string) ([]repository.Grant, error) {
	dir := filepath.Join(a.root, "grants", enc(userID))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fs: list grants: %w", err)
	}

	var out []repository.Grant
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		g, err := a.read(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	sortGrants(out)
	return out, nil
}

func (a *adapter) ListAll(_ context.Context, limit, offset int) (repository.GrantPage, error) {
	root := filepath.Join(a.root, "grants")
	users, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return repository.GrantPage{}, nil
		}
		return repository.GrantPage{}, fmt.Errorf("fs: list grants: %w", err)
	}

	var all []repository.Grant
	for _, u := range users {
		if !u.IsDir() {
			continue
		}
		userID, err := dec(u.Name())
		if err != nil {
			continue // directorio ajeno al layout
		}
		gs, err := a.ListByUser(context.Background(), userID)
		if err != nil {
			return repository.GrantPage{}, err
		}
		all = append(all, gs...)
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

// sortGrants ordena por updated_at descendente (los más recientes primero),
// el mismo orden que devuelven los otros drivers.
func sortGrants(gs []repository.Grant) {
	sort.Slice(gs, func(i, j int) bool {
		if gs[i].UpdatedAt.Equal(gs[j].UpdatedAt) {
			return gs[i].ID < gs[j].ID
		}
		return gs[i].UpdatedAt.After(gs[j].UpdatedAt)
	})
}

func (a *adapter) Ping(_ context.Context) error {
	_, err := os.Stat(filepath.Join(a.root, "grants"))
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	return nil
}

func (a *adapter) Close() error { return nil }
