package fs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/scope"
)

func newTestRepo(t *testing.T) repository.GrantRepository {
	t.Helper()
	repo, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return repo
}

func TestFS_PersistAndReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	_, err = repo.CreateOrMerge(ctx, "u1", "c1",
		scope.NewSet("openid", "email"),
		scope.NewResourceMap(map[string][]string{"https://api-a.example.com": {"read"}}))
	if err != nil {
		t.Fatal(err)
	}

	// un adapter nuevo sobre el mismo root ve el grant persistido
	repo2, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	g, err := repo2.Get(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if !g.Scopes.Equal(scope.NewSet("openid", "email")) {
		t.Fatalf("scopes lost on reload: %v", g.Scopes.Sorted())
	}
	if !g.ResourceScopes.Get("https://api-a.example.com").Equal(scope.NewSet("read")) {
		t.Fatalf("resource scopes lost on reload: %v", g.ResourceScopes.ToStrings())
	}
}

func TestFS_MergeIsMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.CreateOrMerge(ctx, "u1", "c1", scope.NewSet("openid", "email"), nil); err != nil {
		t.Fatal(err)
	}
	g, err := repo.CreateOrMerge(ctx, "u1", "c1", scope.NewSet("profile"), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, tok := range []string{"openid", "email", "profile"} {
		if !g.Scopes.Contains(tok) {
			t.Fatalf("merge removed %q: %v", tok, g.Scopes.Sorted())
		}
	}
}

func TestFS_ConcurrentDisjointMerges(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	var wg sync.WaitGroup
	for _, tok := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			if _, err := repo.CreateOrMerge(ctx, "u1", "c1", scope.NewSet(tok), nil); err != nil {
				t.Errorf("merge %q: %v", tok, err)
			}
		}(tok)
	}
	wg.Wait()

	g, err := repo.Get(ctx, "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if !g.Scopes.Equal(scope.NewSet("a", "b", "c", "d")) {
		t.Fatalf("lost update: %v", g.Scopes.Sorted())
	}
}

func TestFS_DeleteRevokes(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.CreateOrMerge(ctx, "u1", "c1", scope.NewSet("openid"), nil); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, "u1", "c1"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Get(ctx, "u1", "c1"); !repository.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, "u1", "c1"); !repository.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestFS_IDsNeverFormPaths(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	// IDs hostiles: separadores de path y traversal
	userID := "../../etc"
	clientID := "passwd/../x"
	if _, err := repo.CreateOrMerge(ctx, userID, clientID, scope.NewSet("openid"), nil); err != nil {
		t.Fatal(err)
	}
	g, err := repo.Get(ctx, userID, clientID)
	if err != nil {
		t.Fatalf("Get hostile ids: %v", err)
	}
	if g.UserID != userID || g.ClientID != clientID {
		t.Fatal("ids mangled on roundtrip")
	}

	gs, err := repo.ListByUser(ctx, userID)
	if err != nil || len(gs) != 1 {
		t.Fatalf("ListByUser hostile ids: %d, %v", len(gs), err)
	}
}

func TestFS_ListAllPagination(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, p := range []struct{ u, c string }{{"u1", "c1"}, {"u1", "c2"}, {"u2", "c1"}} {
		if _, err := repo.CreateOrMerge(ctx, p.u, p.c, scope.NewSet("openid"), nil); err != nil {
			t.Fatal(err)
		}
	}

	page, err := repo.ListAll(ctx, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || len(page.Grants) != 2 {
		t.Fatalf("ListAll: total=%d page=%d", page.Total, len(page.Grants))
	}
}

func TestFS_ListingsOrderedByRecency(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	// updated_at crecientes: zz primero, aa al final. El orden del listado
	// es por recencia, no por nombre de directorio.
	for _, p := range []struct{ u, c string }{{"zz", "c1"}, {"mm", "c1"}, {"aa", "c1"}} {
		if _, err := repo.CreateOrMerge(ctx, p.u, p.c, scope.NewSet("openid"), nil); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	page, err := repo.ListAll(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, g := range page.Grants {
		got = append(got, g.UserID)
	}
	want := []string{"aa", "mm", "zz"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ListAll order = %v, want %v", got, want)
		}
	}

	// mergear zz lo vuelve el más reciente
	if _, err := repo.CreateOrMerge(ctx, "zz", "c1", scope.NewSet("email"), nil); err != nil {
		t.Fatal(err)
	}
	page, err = repo.ListAll(ctx, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Grants) != 1 || page.Grants[0].UserID != "zz" {
		t.Fatalf("most recent = %+v, want zz", page.Grants)
	}
}
