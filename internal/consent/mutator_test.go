package consent

import (
	"context"
	"testing"

	"github.com/dropDatabas3/consentgate/internal/scope"
	memstore "github.com/dropDatabas3/consentgate/internal/store/adapters/memory"
)

func TestMutatorApply_CreatesGrantWithApprovedScopes(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	m := NewMutator(MutatorDeps{Grants: repo})

	g, err := m.Apply(ctx, ApplyParams{
		UserID:   "u1",
		ClientID: "c1",
		Scopes:   scope.NewSet("openid", "email"),
		Reason:   ReasonNewScopes,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if g == nil || !g.Scopes.Equal(scope.NewSet("openid", "email")) {
		t.Fatalf("grant = %+v", g)
	}
}

func TestMutatorApply_MergesIntoExistingGrant(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	m := NewMutator(MutatorDeps{Grants: repo})

	if _, err := m.Apply(ctx, ApplyParams{
		UserID: "u1", ClientID: "c1",
		Scopes: scope.NewSet("openid"),
		Reason: ReasonNewScopes,
	}); err != nil {
		t.Fatal(err)
	}

	g, err := m.Apply(ctx, ApplyParams{
		UserID: "u1", ClientID: "c1",
		Scopes: scope.NewSet("email"),
		Reason: ReasonNewScopes,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !g.Scopes.Equal(scope.NewSet("openid", "email")) {
		t.Fatalf("merge lost scopes: %v", g.Scopes.Sorted())
	}
}

func TestMutatorApply_IsMonotonic(t *testing.T) {
	// Aplicar un subconjunto de lo ya otorgado nunca achica el grant.
	ctx := context.Background()
	repo := memstore.New()
	m := NewMutator(MutatorDeps{Grants: repo})

	if _, err := m.Apply(ctx, ApplyParams{
		UserID: "u1", ClientID: "c1",
		Scopes: scope.NewSet("openid", "email", "profile"),
		Reason: ReasonNewScopes,
	}); err != nil {
		t.Fatal(err)
	}

	g, err := m.Apply(ctx, ApplyParams{
		UserID: "u1", ClientID: "c1",
		Scopes: scope.NewSet("openid"),
		Reason: ReasonNewScopes,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !g.Scopes.Equal(scope.NewSet("openid", "email", "profile")) {
		t.Fatalf("grant shrank: %v", g.Scopes.Sorted())
	}
}

func TestMutatorApply_TrustPolicyPersistsFullRequest(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	m := NewMutator(MutatorDeps{Grants: repo})

	g, err := m.Apply(ctx, ApplyParams{
		UserID: "u1", ClientID: "trusted",
		Scopes: scope.NewSet("openid", "email"),
		Reason: ReasonTrustPolicy,
	})
	if err != nil {
		t.Fatal(err)
	}
	if g == nil {
		t.Fatal("trust approval must still persist the grant")
	}

	stored, err := repo.Get(ctx, "u1", "trusted")
	if err != nil {
		t.Fatalf("grant not persisted: %v", err)
	}
	if !stored.Scopes.Equal(scope.NewSet("openid", "email")) {
		t.Fatalf("stored = %v", stored.Scopes.Sorted())
	}
}

func TestMutatorApply_CachedGrantWritesNothing(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	m := NewMutator(MutatorDeps{Grants: repo})

	g, err := m.Apply(ctx, ApplyParams{
		UserID: "u1", ClientID: "c1",
		Scopes: scope.NewSet("openid"),
		Reason: ReasonCachedGrant,
	})
	if err != nil {
		t.Fatal(err)
	}
	if g != nil {
		t.Fatal("cache hit must not mutate")
	}
	if _, err := repo.Get(ctx, "u1", "c1"); err == nil {
		t.Fatal("cache hit created a grant")
	}
}

func TestMutatorApply_NeverCreatesEmptyGrant(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	m := NewMutator(MutatorDeps{Grants: repo})

	g, err := m.Apply(ctx, ApplyParams{
		UserID: "u1", ClientID: "trusted",
		Reason: ReasonTrustPolicy,
	})
	if err != nil {
		t.Fatal(err)
	}
	if g != nil {
		t.Fatal("empty approval returned a grant")
	}
	if _, err := repo.Get(ctx, "u1", "trusted"); err == nil {
		t.Fatal("empty grant was persisted")
	}
}

func TestMutatorApply_ResourceScopesPersistPerIndicator(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	m := NewMutator(MutatorDeps{Grants: repo})

	_, err := m.Apply(ctx, ApplyParams{
		UserID: "u1", ClientID: "c1",
		ResourceScopes: scope.NewResourceMap(map[string][]string{
			"https://api-a.example.com": {"read"},
		}),
		Reason: ReasonNewScopes,
	})
	if err != nil {
		t.Fatal(err)
	}

	g, err := m.Apply(ctx, ApplyParams{
		UserID: "u1", ClientID: "c1",
		ResourceScopes: scope.NewResourceMap(map[string][]string{
			"https://api-b.example.com": {"read", "write"},
		}),
		Reason: ReasonNewScopes,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := scope.NewResourceMap(map[string][]string{
		"https://api-a.example.com": {"read"},
		"https://api-b.example.com": {"read", "write"},
	})
	if !g.ResourceScopes.Equal(want) {
		t.Fatalf("resource scopes = %v", g.ResourceScopes.ToStrings())
	}
}
