// Package trust resuelve la Client Trust Policy que consume el motor de
// decisión. La fuente es un archivo YAML de clients (configuración externa,
// read-only para este servicio); se cachea con TTL y los lookups
// concurrentes del mismo archivo se deduplican con singleflight.
package trust

import (
	"context"
	"fmt"
	"os"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/observability/logger"
)

const cacheKey = "clients"

// Config configura la fuente de políticas.
type Config struct {
	// ClientsFile path al YAML de clients.
	ClientsFile string

	// TTL de cache del archivo parseado. Default: 30s.
	TTL time.Duration
}

// clientsFile es el shape del YAML.
type clientsFile struct {
	Clients []repository.ClientPolicy `yaml:"clients"`
}

// FileSource implementa repository.TrustPolicySource sobre un archivo YAML.
type FileSource struct {
	path  string
	ttl   time.Duration
	cache *gocache.Cache
	sf    singleflight.Group
}

// NewFileSource crea la fuente. Falla rápido si el archivo no parsea al inicio.
func NewFileSource(cfg Config) (*FileSource, error) {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	s := &FileSource{
		path:  cfg.ClientsFile,
		ttl:   ttl,
		cache: gocache.New(ttl, time.Minute),
	}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Policy retorna la política del client. La ausencia de registro no es un
// error: retorna la política zero (skip_consent_screen=false), el default
// seguro. Un fallo de lectura real se reporta como ErrStoreUnavailable.
func (s *FileSource) Policy(ctx context.Context, clientID string) (repository.ClientPolicy, error) {
	policies, err := s.policies(ctx)
	if err != nil {
		return repository.ClientPolicy{}, err
	}
	if p, ok := policies[clientID]; ok {
		return p, nil
	}
	return repository.ClientPolicy{ClientID: clientID}, nil
}

// policies retorna el mapa cacheado, recargando el archivo si venció el TTL.
func (s *FileSource) policies(ctx context.Context) (map[string]repository.ClientPolicy, error) {
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.(map[string]repository.ClientPolicy), nil
	}

	// singleflight: una sola relectura del archivo por ventana de expiración
	v, err, _ := s.sf.Do(cacheKey, func() (any, error) {
		return s.load()
	})
	if err != nil {
		logger.From(ctx).Warn("trust policy reload failed", logger.Err(err), logger.Path(s.path))
		return nil, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	return v.(map[string]repository.ClientPolicy), nil
}

func (s *FileSource) load() (map[string]repository.ClientPolicy, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("trust: read clients file: %w", err)
	}
	var f clientsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("trust: parse clients file: %w", err)
	}

	out := make(map[string]repository.ClientPolicy, len(f.Clients))
	for _, c := range f.Clients {
		if c.ClientID == "" {
			continue
		}
		out[c.ClientID] = c
	}
	s.cache.Set(cacheKey, out, s.ttl)
	return out, nil
}

// StaticSource es una fuente fija en memoria, para tests y para despliegues
// donde las políticas llegan por config del proceso.
type StaticSource map[string]repository.ClientPolicy

// Policy implementa repository.TrustPolicySource.
func (s StaticSource) Policy(_ context.Context, clientID string) (repository.ClientPolicy, error) {
	if p, ok := s[clientID]; ok {
		return p, nil
	}
	return repository.ClientPolicy{ClientID: clientID}, nil
}
