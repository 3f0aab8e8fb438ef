package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/scope"
)

func TestCreateOrMerge_CreateThenMerge(t *testing.T) {
	ctx := context.Background()
	repo := New()

	g, err := repo.CreateOrMerge(ctx, "u1", "c1", scope.NewSet("openid", "email"), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !g.Scopes.Equal(scope.NewSet("openid", "email")) {
		t.Fatalf("unexpected scopes: %v", g.Scopes.Sorted())
	}
	if g.ID == "" || g.CreatedAt.IsZero() {
		t.Fatal("missing id/created_at")
	}

	g2, err := repo.CreateOrMerge(ctx, "u1", "c1", scope.NewSet("profile"), nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !g2.Scopes.Equal(scope.NewSet("openid", "email", "profile")) {
		t.Fatalf("merge lost scopes: %v", g2.Scopes.Sorted())
	}
	if g2.ID != g.ID {
		t.Fatal("merge created a second grant for the same key")
	}
}

func TestCreateOrMerge_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := New()

	s := scope.NewSet("openid", "email")
	if _, err := repo.CreateOrMerge(ctx, "u1", "c1", s, nil); err != nil {
		t.Fatal(err)
	}
	g, err := repo.CreateOrMerge(ctx, "u1", "c1", s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !g.Scopes.Equal(s) || g.Scopes.Len() != 2 {
		t.Fatalf("double merge not idempotent: %v", g.Scopes.Sorted())
	}
}

func TestCreateOrMerge_ResourceIsolation(t *testing.T) {
	ctx := context.Background()
	repo := New()

	_, err := repo.CreateOrMerge(ctx, "u1", "c1", nil,
		scope.NewResourceMap(map[string][]string{"api-A": {"read"}}))
	if err != nil {
		t.Fatal(err)
	}
	g, err := repo.CreateOrMerge(ctx, "u1", "c1", nil,
		scope.NewResourceMap(map[string][]string{"api-B": {"read"}}))
	if err != nil {
		t.Fatal(err)
	}

	if !g.ResourceScopes.Get("api-A").Equal(scope.NewSet("read")) {
		t.Fatalf("api-A affected: %v", g.ResourceScopes.ToStrings())
	}
	if !g.ResourceScopes.Get("api-B").Equal(scope.NewSet("read")) {
		t.Fatalf("api-B not merged: %v", g.ResourceScopes.ToStrings())
	}
}

func TestCreateOrMerge_ConcurrentDisjointSets(t *testing.T) {
	ctx := context.Background()
	repo := New()

	// dos aprobaciones concurrentes con sets disjuntos para la misma key:
	// el grant final debe contener la unión, sin importar el interleaving
	var wg sync.WaitGroup
	for _, s := range []string{"a", "b"} {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			if _, err := repo.CreateOrMerge(ctx, "u1", "c1", scope.NewSet(tok), nil); err != nil {
				t.Errorf("merge %q: %v", tok, err)
			}
		}(s)
	}
	wg.Wait()

	g, err := repo.Get(ctx, "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if !g.Scopes.Equal(scope.NewSet("a", "b")) {
		t.Fatalf("lost update: %v", g.Scopes.Sorted())
	}
}

func TestCreateOrMerge_ConcurrentManyWriters(t *testing.T) {
	ctx := context.Background()
	repo := New()

	tokens := []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7"}
	var wg sync.WaitGroup
	for _, tok := range tokens {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			_, _ = repo.CreateOrMerge(ctx, "u1", "c1", scope.NewSet(tok), nil)
		}(tok)
	}
	wg.Wait()

	g, err := repo.Get(ctx, "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if g.Scopes.Len() != len(tokens) {
		t.Fatalf("expected %d scopes, got %v", len(tokens), g.Scopes.Sorted())
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	repo := New()

	if _, err := repo.Get(ctx, "u1", "c1"); !repository.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, "u1", "c1"); !repository.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}

	if _, err := repo.CreateOrMerge(ctx, "u1", "c1", scope.NewSet("openid"), nil); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, "u1", "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, "u1", "c1"); !repository.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound after revoke, got %v", err)
	}
}

func TestListByUserAndListAll(t *testing.T) {
	ctx := context.Background()
	repo := New()

	seed := []struct{ u, c string }{
		{"u1", "c1"}, {"u1", "c2"}, {"u2", "c1"},
	}
	for _, s := range seed {
		if _, err := repo.CreateOrMerge(ctx, s.u, s.c, scope.NewSet("openid"), nil); err != nil {
			t.Fatal(err)
		}
	}

	byUser, err := repo.ListByUser(ctx, "u1")
	if err != nil || len(byUser) != 2 {
		t.Fatalf("ListByUser: %d, %v", len(byUser), err)
	}

	page, err := repo.ListAll(ctx, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || len(page.Grants) != 2 {
		t.Fatalf("ListAll: total=%d page=%d", page.Total, len(page.Grants))
	}

	rest, err := repo.ListAll(ctx, 2, 2)
	if err != nil || len(rest.Grants) != 1 {
		t.Fatalf("ListAll offset: %d, %v", len(rest.Grants), err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := New()

	if _, err := repo.CreateOrMerge(ctx, "u1", "c1", scope.NewSet("openid"), nil); err != nil {
		t.Fatal(err)
	}
	g, _ := repo.Get(ctx, "u1", "c1")
	g.Scopes["inyectado"] = struct{}{}

	again, _ := repo.Get(ctx, "u1", "c1")
	if again.Scopes.Contains("inyectado") {
		t.Fatal("Get leaked internal state")
	}
}
