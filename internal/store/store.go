// Package store construye el GrantRepository según el driver configurado.
//
// Drivers:
//   - memory:   in-process, para desarrollo y tests.
//   - fs:       archivos JSON con escritura atómica, para single-node.
//   - postgres: pgx pool, merge atómico vía transacción. Producción.
package store

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/store/adapters/fs"
	"github.com/dropDatabas3/consentgate/internal/store/adapters/memory"
	"github.com/dropDatabas3/consentgate/internal/store/adapters/pg"
)

// Config selecciona e inicializa el backend de grants.
type Config struct {
	// Driver: "memory" | "fs" | "postgres"
	Driver string

	// DSN para postgres (postgres://...)
	DSN string

	// FSRoot directorio de datos para el driver fs
	FSRoot string
}

// New crea el GrantRepository para el driver configurado.
func New(ctx context.Context, cfg Config) (repository.GrantRepository, error) {
	switch cfg.Driver {
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store: postgres driver requires dsn")
		}
		return pg.New(ctx, cfg.DSN)
	case "fs":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("store: fs driver requires fs_root")
		}
		return fs.New(cfg.FSRoot)
	case "memory", "":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
