package trust

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const clientsYAML = `
clients:
  - client_id: first-party-web
    name: First Party Web
    skip_consent_screen: true
    allowed_scopes: [openid, email, profile]
  - client_id: third-party-app
    name: Third Party
    skip_consent_screen: false
`

func writeClients(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clients.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileSource_Policy(t *testing.T) {
	ctx := context.Background()
	src, err := NewFileSource(Config{ClientsFile: writeClients(t, clientsYAML)})
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}

	p, err := src.Policy(ctx, "first-party-web")
	if err != nil {
		t.Fatal(err)
	}
	if !p.SkipConsentScreen {
		t.Fatal("expected skip_consent_screen=true")
	}
	if len(p.AllowedScopes) != 3 {
		t.Fatalf("allowed scopes not parsed: %v", p.AllowedScopes)
	}

	p, err = src.Policy(ctx, "third-party-app")
	if err != nil || p.SkipConsentScreen {
		t.Fatalf("expected skip=false, got %+v %v", p, err)
	}
}

func TestFileSource_UnknownClientIsSafeDefault(t *testing.T) {
	ctx := context.Background()
	src, err := NewFileSource(Config{ClientsFile: writeClients(t, clientsYAML)})
	if err != nil {
		t.Fatal(err)
	}

	p, err := src.Policy(ctx, "never-registered")
	if err != nil {
		t.Fatalf("absence must not be an error: %v", err)
	}
	if p.SkipConsentScreen {
		t.Fatal("unknown client must default to skip=false")
	}
}

func TestFileSource_ReloadAfterTTL(t *testing.T) {
	ctx := context.Background()
	path := writeClients(t, clientsYAML)
	src, err := NewFileSource(Config{ClientsFile: path, TTL: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	updated := `
clients:
  - client_id: third-party-app
    skip_consent_screen: true
`
	if err := os.WriteFile(path, []byte(updated), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	p, err := src.Policy(ctx, "third-party-app")
	if err != nil {
		t.Fatal(err)
	}
	if !p.SkipConsentScreen {
		t.Fatal("expected reloaded policy with skip=true")
	}
}

func TestFileSource_BadFileFailsFast(t *testing.T) {
	if _, err := NewFileSource(Config{ClientsFile: "/nonexistent/clients.yaml"}); err == nil {
		t.Fatal("expected error for missing file")
	}
	bad := writeClients(t, "clients: [not: valid: yaml: {")
	if _, err := NewFileSource(Config{ClientsFile: bad}); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}
