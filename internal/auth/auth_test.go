package auth_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"salience/internal/auth"
	"salience/internal/store"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := auth.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash equals plaintext")
	}
	if err := auth.VerifyPassword(hash, "correct horse battery staple"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := auth.VerifyPassword(hash, "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := auth.HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tokens, err := auth.NewTokens("unit-test-signing-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}

	user := &store.User{ID: 42, Role: store.RoleSpecialist}
	signed, err := tokens.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.Count(signed, ".") != 2 {
		t.Fatalf("token is not a compact JWS: %q", signed)
	}

	claims, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	id, err := claims.UserID()
	if err != nil {
		t.Fatalf("UserID: %v", err)
	}
	if id != 42 || claims.Role != string(store.RoleSpecialist) {
		t.Fatalf("claims = id %d role %s", id, claims.Role)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer, err := auth.NewTokens("issuer-secret-issuer-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	verifier, err := auth.NewTokens("another-secret-another-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}

	signed, err := issuer.Issue(&store.User{ID: 1, Role: store.RoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(signed); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	tokens, err := auth.NewTokens("unit-test-signing-secret", time.Nanosecond)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	signed, err := tokens.Issue(&store.User{ID: 1, Role: store.RoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := tokens.Verify(signed); err == nil {
		t.Fatal("expected verification failure for expired token")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	tokens, err := auth.NewTokens("unit-test-signing-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	if _, err := tokens.Verify("not.a.token"); err == nil {
		t.Fatal("expected verification failure for malformed token")
	}
}

func TestNewTokensValidation(t *testing.T) {
	if _, err := auth.NewTokens("", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := auth.NewTokens("secret-secret-secret", 0); err == nil {
		t.Fatal("expected error for zero lifetime")
	}
}
