package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionRoundTrip(t *testing.T) {
	mgr := NewSessionManager("test-secret", time.Hour)

	token, err := mgr.Issue(context.Background(), 42, "admin", "USR-DEADBEEF")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claim, err := mgr.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claim.SubjectID != 42 {
		t.Errorf("subject = %d, want 42", claim.SubjectID)
	}
	if claim.Role != "admin" {
		t.Errorf("role = %q, want admin", claim.Role)
	}
	if claim.UserCode != "USR-DEADBEEF" {
		t.Errorf("user code = %q, want USR-DEADBEEF", claim.UserCode)
	}
}

func TestSessionWrongSecret(t *testing.T) {
	token, err := NewSessionManager("secret-a", time.Hour).Issue(context.Background(), 1, "admin", "USR-A")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = NewSessionManager("secret-b", time.Hour).Verify(context.Background(), token)
	if !errors.Is(err, ErrMalformedCredential) {
		t.Fatalf("expected ErrMalformedCredential, got %v", err)
	}
}

func TestSessionExpired(t *testing.T) {
	mgr := NewSessionManager("test-secret", time.Millisecond)

	token, err := mgr.Issue(context.Background(), 1, "admin", "USR-A")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, err = mgr.Verify(context.Background(), token)
	if !errors.Is(err, ErrExpiredCredential) {
		t.Fatalf("expected ErrExpiredCredential, got %v", err)
	}
}

func TestSessionGarbageToken(t *testing.T) {
	mgr := NewSessionManager("test-secret", time.Hour)

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := mgr.Verify(context.Background(), tok); !errors.Is(err, ErrMalformedCredential) {
			t.Errorf("Verify(%q) = %v, want ErrMalformedCredential", tok, err)
		}
	}
}

func TestSessionDefaultTTL(t *testing.T) {
	if got := NewSessionManager("s", 0).TTL(); got != 24*time.Hour {
		t.Errorf("TTL() = %v, want 24h", got)
	}
	if got := NewSessionManager("s", -time.Hour).TTL(); got != 24*time.Hour {
		t.Errorf("TTL() = %v, want 24h", got)
	}
	if got := NewSessionManager("s", time.Minute).TTL(); got != time.Minute {
		t.Errorf("TTL() = %v, want 1m", got)
	}
}
