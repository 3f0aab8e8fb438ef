package services

import (
	"context"
	"time"

	"github.com/dropDatabas3/consentgate/internal/cache"
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
)

// HealthService expone los probes de liveness/readiness.
type HealthService interface {
	// Live: el proceso responde.
	Live() ProbeResult
	// Ready: los backends (store, cache) contestan.
	Ready(ctx context.Context) ProbeResult
}

// ProbeResult es el resultado de un probe.
type ProbeResult struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthDeps dependencias del service.
type HealthDeps struct {
	Grants repository.GrantRepository
	Cache  cache.Client
}

type healthService struct {
	grants repository.GrantRepository
	cache  cache.Client
}

// NewHealthService crea el service.
func NewHealthService(d HealthDeps) HealthService {
	return &healthService{grants: d.Grants, cache: d.Cache}
}

func (s *healthService) Live() ProbeResult {
	return ProbeResult{OK: true}
}

func (s *healthService) Ready(ctx context.Context) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	res := ProbeResult{OK: true, Checks: map[string]string{}}
	if err := s.grants.Ping(ctx); err != nil {
		res.OK = false
		res.Checks["store"] = err.Error()
	} else {
		res.Checks["store"] = "ok"
	}
	if err := s.cache.Ping(ctx); err != nil {
		res.OK = false
		res.Checks["cache"] = err.Error()
	} else {
		res.Checks["cache"] = "ok"
	}
	return res
}
