package session

import (
	"testing"
	"time"

	"github.com/dropDatabas3/consentgate/internal/scope"
)

func newStarted() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:              "i1",
		UserID:          "u1",
		ClientID:        "c1",
		RequestedScopes: scope.NewSet("openid", "email"),
		State:           StateStarted,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Minute),
	}
}

func TestTransitions_HappyPaths(t *testing.T) {
	// STARTED → APPROVED (auto-aprobación)
	s := newStarted()
	if err := s.MarkApproved(); err != nil {
		t.Fatal(err)
	}
	if !s.Terminal() {
		t.Fatal("APPROVED should be terminal")
	}

	// STARTED → CONSENT_REQUIRED → APPROVED
	s = newStarted()
	if err := s.MarkConsentRequired(scope.NewSet("profile"), nil); err != nil {
		t.Fatal(err)
	}
	if !s.MissingScopes.Equal(scope.NewSet("profile")) {
		t.Fatalf("missing not recorded: %v", s.MissingScopes.Sorted())
	}
	if err := s.MarkApproved(); err != nil {
		t.Fatal(err)
	}

	// STARTED → CONSENT_REQUIRED → DENIED
	s = newStarted()
	_ = s.MarkConsentRequired(scope.NewSet("profile"), nil)
	if err := s.MarkDenied(); err != nil {
		t.Fatal(err)
	}
	if s.State != StateDenied {
		t.Fatalf("state: %s", s.State)
	}
}

func TestTransitions_InvalidOnesRejected(t *testing.T) {
	// DENIED directo desde STARTED no existe en la máquina
	s := newStarted()
	if err := s.MarkDenied(); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// terminal no admite más transiciones
	s = newStarted()
	_ = s.MarkApproved()
	for _, fn := range []func() error{s.MarkApproved, s.MarkDenied, s.MarkExpired,
		func() error { return s.MarkConsentRequired(nil, nil) }} {
		if err := fn(); err != ErrInvalidTransition {
			t.Fatalf("expected ErrInvalidTransition from terminal, got %v", err)
		}
	}
}

func TestMarkExpired_FromAnyNonTerminal(t *testing.T) {
	s := newStarted()
	if err := s.MarkExpired(); err != nil {
		t.Fatal(err)
	}
	if s.State != StateExpired || !s.Terminal() {
		t.Fatalf("state: %s", s.State)
	}

	s = newStarted()
	_ = s.MarkConsentRequired(scope.NewSet("profile"), nil)
	if err := s.MarkExpired(); err != nil {
		t.Fatal(err)
	}
}

func TestExpiredAt(t *testing.T) {
	s := newStarted()
	if s.ExpiredAt(s.CreatedAt) {
		t.Fatal("fresh session reported expired")
	}
	if !s.ExpiredAt(s.ExpiresAt.Add(time.Second)) {
		t.Fatal("stale session not reported expired")
	}
}
