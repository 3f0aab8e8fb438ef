// Package pg implementa GrantRepository sobre PostgreSQL.
// Usa pgxpool directamente. CreateOrMerge corre en una transacción con
// SELECT ... FOR UPDATE: los writers concurrentes de una misma key se
// serializan en la fila y el resultado es la unión de todos los merges.
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/scope"
	migrations "github.com/dropDatabas3/consentgate/migrations/postgres"
)

// mergeRetries: reintentos internos ante conflicto de concurrencia.
// El conflicto nunca se propaga al caller.
const mergeRetries = 3

type adapter struct {
	pool *pgxpool.Pool
}

// New conecta al pool y aplica el schema embebido.
func New(ctx context.Context, dsn string) (repository.GrantRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	a := &adapter{pool: pool}
	if err := a.applyMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

// applyMigrations ejecuta los .sql embebidos en orden lexicográfico.
// Todos son idempotentes (IF NOT EXISTS).
func (a *adapter) applyMigrations(ctx context.Context) error {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("pg: read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := migrations.FS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("pg: read migration %s: %w", name, err)
		}
		if _, err := a.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("pg: apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (a *adapter) Get(ctx context.Context, userID, clientID string) (*repository.Grant, error) {
	const query = `
		SELECT id, user_id, client_id, scopes, resource_scopes, created_at, updated_at
		FROM consent_grant WHERE user_id = $1 AND client_id = $2
	`
	return scanGrant(a.pool.QueryRow(ctx, query, userID, clientID))
}

func (a *adapter) CreateOrMerge(ctx context.Context, userID, clientID string, newScopes scope.Set, newResources scope.ResourceMap) (*repository.Grant, error) {
	if userID == "" || clientID == "" {
		return nil, repository.ErrInvalidInput
	}

	var g *repository.Grant
	var err error
	for attempt := 0; attempt < mergeRetries; attempt++ {
		g, err = a.mergeOnce(ctx, userID, clientID, newScopes, newResources)
		if err == nil {
			return g, nil
		}
		if !repository.IsConflict(err) {
			return nil, err
		}
		// conflicto: otro writer ganó la carrera; releer y volver a mergear
	}
	return nil, fmt.Errorf("pg: merge retries exhausted: %w", err)
}

// mergeOnce es un intento de read-merge-write transaccional.
// Carreras de INSERT (23505) y aborts por serialización se reportan como
// ErrConflict para que CreateOrMerge reintente.
func (a *adapter) mergeOnce(ctx context.Context, userID, clientID string, newScopes scope.Set, newResources scope.ResourceMap) (*repository.Grant, error) {
	tx, err := a.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	const lockQuery = `
		SELECT id, user_id, client_id, scopes, resource_scopes, created_at, updated_at
		FROM consent_grant WHERE user_id = $1 AND client_id = $2
		FOR UPDATE
	`
	now := time.Now().UTC()

	existing, err := scanGrant(tx.QueryRow(ctx, lockQuery, userID, clientID))
	switch {
	case err == nil:
		merged := existing.Scopes.Union(newScopes)
		mergedRes := existing.ResourceScopes.Union(newResources)
		resJSON, err := marshalResources(mergedRes)
		if err != nil {
			return nil, err
		}
		const updateQuery = `
			UPDATE consent_grant SET scopes = $3, resource_scopes = $4, updated_at = $5
			WHERE user_id = $1 AND client_id = $2
		`
		if _, err := tx.Exec(ctx, updateQuery, userID, clientID, merged.Sorted(), resJSON, now); err != nil {
			return nil, asConflict(err)
		}
		existing.Scopes = merged
		existing.ResourceScopes = mergedRes
		existing.UpdatedAt = now
		if err := tx.Commit(ctx); err != nil {
			return nil, asConflict(err)
		}
		return existing, nil

	case repository.IsNotFound(err):
		g := &repository.Grant{
			ID:             uuid.NewString(),
			UserID:         userID,
			ClientID:       clientID,
			Scopes:         newScopes.Clone(),
			ResourceScopes: newResources.Clone(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		resJSON, err := marshalResources(g.ResourceScopes)
		if err != nil {
			return nil, err
		}
		const insertQuery = `
			INSERT INTO consent_grant (id, user_id, client_id, scopes, resource_scopes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		if _, err := tx.Exec(ctx, insertQuery, g.ID, userID, clientID, g.Scopes.Sorted(), resJSON, now, now); err != nil {
			return nil, asConflict(err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, asConflict(err)
		}
		return g, nil

	default:
		return nil, err
	}
}

func (a *adapter) Delete(ctx context.Context, userID, clientID string) error {
	const query = `DELETE FROM consent_grant WHERE user_id = $1 AND client_id = $2`
	tag, err := a.pool.Exec(ctx, query, userID, clientID)
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (a *adapter) ListByUser(ctx context.Context, userID string) ([]repository.Grant, error) {
	const query = `
		SELECT id, user_id, client_id, scopes, resource_scopes, created_at, updated_at
		FROM consent_grant WHERE user_id = $1 ORDER BY updated_at DESC
	`
	rows, err := a.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	defer rows.Close()
	return collectGrants(rows)
}

func (a *adapter) ListAll(ctx context.Context, limit, offset int) (repository.GrantPage, error) {
	var total int
	if err := a.pool.QueryRow(ctx, `SELECT COUNT(*) FROM consent_grant`).Scan(&total); err != nil {
		return repository.GrantPage{}, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}

	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, user_id, client_id, scopes, resource_scopes, created_at, updated_at
		FROM consent_grant ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := a.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return repository.GrantPage{}, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	grants, err := collectGrants(rows)
	if err != nil {
		return repository.GrantPage{}, err
	}
	return repository.GrantPage{Grants: grants, Total: total}, nil
}

func (a *adapter) Ping(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	return nil
}

func (a *adapter) Close() error {
	a.pool.Close()
	return nil
}

// ─── helpers de scan/serialización ───

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (*repository.Grant, error) {
	var g repository.Grant
	var scopes []string
	var resJSON []byte
	err := row.Scan(&g.ID, &g.UserID, &g.ClientID, &scopes, &resJSON, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	g.Scopes = scope.NewSet(scopes...)
	res, err := unmarshalResources(resJSON)
	if err != nil {
		return nil, err
	}
	g.ResourceScopes = res
	return &g, nil
}

func collectGrants(rows pgx.Rows) ([]repository.Grant, error) {
	var out []repository.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	return out, nil
}

func marshalResources(m scope.ResourceMap) ([]byte, error) {
	strs := m.ToStrings()
	if strs == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(strs)
	if err != nil {
		return nil, fmt.Errorf("pg: encode resource_scopes: %w", err)
	}
	return b, nil
}

func unmarshalResources(b []byte) (scope.ResourceMap, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var strs map[string][]string
	if err := json.Unmarshal(b, &strs); err != nil {
		return nil, fmt.Errorf("pg: decode resource_scopes: %w", err)
	}
	return scope.NewResourceMap(strs), nil
}

// asConflict mapea carreras de unique (23505) y aborts de serialización
// (40001/40P01) a ErrConflict; el resto se reporta como indisponibilidad.
func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return fmt.Errorf("%w: %v", repository.ErrConflict, err)
		}
	}
	return fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
}
