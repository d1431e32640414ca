package auth

import (
	"testing"
	"time"

	"worksphere/internal/platform/config"
)

func newTestService() *TokenService {
	return NewTokenService(config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
}

func TestTokenService_AccessToken(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAccessToken("usr_1", "org_1", "admin", "a@example.com")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if claims.UserID != "usr_1" || claims.OrganizationID != "org_1" || claims.Role != "admin" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestTokenService_RefreshTokenIsNotAccessToken(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateRefreshToken("usr_1")
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "usr_1" {
		t.Errorf("Subject = %q, want usr_1", claims.Subject)
	}

	if _, err := svc.ValidateAccessToken(token); err == nil {
		t.Error("expected refresh token to be rejected as access token")
	}
}

func TestTokenService_Expired(t *testing.T) {
	svc := newTestService()
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := svc.GenerateAccessToken("usr_1", "org_1", "admin", "a@example.com")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("expected expired token to fail validation")
	}
}

func TestTokenService_WrongSecret(t *testing.T) {
	token, _ := newTestService().GenerateAccessToken("usr_1", "org_1", "admin", "a@example.com")

	other := NewTokenService(config.JWTConfig{Secret: "other", AccessTokenTTL: time.Minute})
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("expected signature mismatch")
	}
}
