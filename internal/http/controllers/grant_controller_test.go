package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/http/services"
	memstore "github.com/dropDatabas3/consentgate/internal/store/adapters/memory"
)

// unavailableRepo fuerza backend caído en toda lectura/escritura.
type unavailableRepo struct {
	repository.GrantRepository
}

func (unavailableRepo) Get(context.Context, string, string) (*repository.Grant, error) {
	return nil, repository.ErrStoreUnavailable
}

func (unavailableRepo) ListByUser(context.Context, string) ([]repository.Grant, error) {
	return nil, repository.ErrStoreUnavailable
}

func (unavailableRepo) ListAll(context.Context, int, int) (repository.GrantPage, error) {
	return repository.GrantPage{}, repository.ErrStoreUnavailable
}

func (unavailableRepo) Delete(context.Context, string, string) error {
	return repository.ErrStoreUnavailable
}

func newGrantRouter(repo repository.GrantRepository) http.Handler {
	c := NewGrantController(services.NewGrantService(services.GrantDeps{Grants: repo}))
	r := chi.NewRouter()
	r.Get("/v1/grants", c.List)
	r.Get("/v1/grants/{userID}", c.ListByUser)
	r.Get("/v1/grants/{userID}/{clientID}", c.Get)
	r.Delete("/v1/grants/{userID}/{clientID}", c.Revoke)
	r.Get("/admin/grants", c.ListAll)
	return r
}

func TestGrantController_StoreUnavailableIs503(t *testing.T) {
	h := newGrantRouter(unavailableRepo{GrantRepository: memstore.New()})

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/v1/grants/u1/c1"},
		{http.MethodGet, "/v1/grants/u1"},
		{http.MethodGet, "/v1/grants?user_id=u1"},
		{http.MethodDelete, "/v1/grants/u1/c1"},
		{http.MethodGet, "/admin/grants"},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: status = %d, want 503", tc.method, tc.path, rec.Code)
		}
	}
}

func TestGrantController_MissingGrantIs404(t *testing.T) {
	h := newGrantRouter(memstore.New())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/grants/u1/c1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
