package security

import (
	"testing"
	"time"
)

func TestTokenIssueAndVerify(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	token, err := m.Issue(42, "parent@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	userID, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if userID != 42 {
		t.Errorf("Verify() userID = %d, want 42", userID)
	}
}

func TestTokenVerifyFailures(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	token, err := m.Issue(7, "parent@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name    string
		manager *TokenManager
		token   string
	}{
		{name: "garbage token", manager: m, token: "not-a-token"},
		{name: "empty token", manager: m, token: ""},
		{name: "wrong secret", manager: NewTokenManager("other-secret", time.Hour), token: token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.manager.Verify(tt.token); err == nil {
				t.Error("Verify() expected error, got nil")
			}
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	m := NewTokenManager("test-secret", -time.Minute)
	token, err := m.Issue(7, "parent@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := m.Verify(token); err == nil {
		t.Error("Verify() accepted an expired token")
	}
}

func TestGenerateSecureToken(t *testing.T) {
	a, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken() error = %v", err)
	}
	if len(a) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(a))
	}

	b, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken() error = %v", err)
	}
	if a == b {
		t.Error("two generated tokens are identical")
	}
}
