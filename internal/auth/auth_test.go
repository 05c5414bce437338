package auth

import "testing"

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-signing-secret", "HS256", 60)

	token, err := issuer.Issue("user-1", "alice", "admin")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.UserID != "user-1" || claims.Username != "alice" || claims.Role != "admin" {
		t.Errorf("Verify() claims = %+v, want user-1/alice/admin", claims)
	}
}

func TestVerifyRejectsTokenFromDifferentSecret(t *testing.T) {
	issuer := NewTokenIssuer("secret-a", "HS256", 60)
	token, err := issuer.Issue("user-1", "alice", "member")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	other := NewTokenIssuer("secret-b", "HS256", 60)
	if _, err := other.Verify(token); err == nil {
		t.Error("Verify() with a different secret should fail, got nil error")
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Error("CheckPassword() = false for the correct password")
	}
	if CheckPassword(hash, "wrong password") {
		t.Error("CheckPassword() = true for an incorrect password")
	}
}
