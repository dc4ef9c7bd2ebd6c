package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/org-registry/org-registry/internal/config"
)

func testIssuer(t *testing.T, lifetime time.Duration) *TokenIssuer {
	t.Helper()
	ti, err := NewTokenIssuer(config.AuthConfig{
		JWTSecret:     "0123456789abcdef0123456789abcdef",
		TokenLifetime: lifetime,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return ti
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	ti := testIssuer(t, 30*time.Minute)

	token, err := ti.Issue("admin-1", "acme")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := ti.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.AdminID != "admin-1" {
		t.Errorf("AdminID = %s, want admin-1", claims.AdminID)
	}
	if claims.OrganizationID != "acme" {
		t.Errorf("OrganizationID = %s, want acme", claims.OrganizationID)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Fatal("expiry and issued-at must be set")
	}
	gotLifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if gotLifetime != 30*time.Minute {
		t.Errorf("lifetime = %v, want 30m", gotLifetime)
	}
}

func TestVerify_Expired(t *testing.T) {
	ti := testIssuer(t, -time.Minute) // already expired at issuance

	token, err := ti.Issue("admin-1", "acme")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = ti.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	ti := testIssuer(t, 30*time.Minute)
	other, err := NewTokenIssuer(config.AuthConfig{
		JWTSecret:     "ffffffffffffffffffffffffffffffff",
		TokenLifetime: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	token, err := other.Issue("admin-1", "acme")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = ti.Verify(token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	ti := testIssuer(t, 30*time.Minute)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := ti.Verify(token); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("Verify(%q) = %v, want ErrTokenInvalid", token, err)
		}
	}
}

func TestNewTokenIssuer_SecretRequired(t *testing.T) {
	if _, err := NewTokenIssuer(config.AuthConfig{TokenLifetime: time.Minute}); err == nil {
		t.Fatal("expected error for missing secret outside dev mode")
	}

	// Dev mode generates a throwaway secret.
	ti, err := NewTokenIssuer(config.AuthConfig{DevMode: true, TokenLifetime: time.Minute})
	if err != nil {
		t.Fatalf("dev mode should allow an empty secret: %v", err)
	}
	token, err := ti.Issue("admin-1", "acme")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := ti.Verify(token); err != nil {
		t.Errorf("token from generated secret should verify: %v", err)
	}
}

func TestNewTokenIssuer_DefaultLifetime(t *testing.T) {
	ti, err := NewTokenIssuer(config.AuthConfig{JWTSecret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	if ti.lifetime != 30*time.Minute {
		t.Errorf("lifetime = %v, want default 30m", ti.lifetime)
	}
}
