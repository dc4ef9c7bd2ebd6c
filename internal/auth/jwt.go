// jwt.go handles bearer token creation, signing, and verification using a
// shared secret. Tokens are self-contained: they carry the admin identity and
// organization identifier, and once issued cannot be revoked server-side —
// expiry is the only termination mechanism.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/org-registry/org-registry/internal/config"
)

// Token error kinds. Expired tokens are distinguished from malformed or
// badly-signed ones so handlers can report them precisely; both map to 401.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the bearer token payload: the admin identity and the organization
// it administers, plus the registered issued-at/expiry claims.
type Claims struct {
	AdminID        string `json:"admin_id"`
	OrganizationID string `json:"organization_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies bearer tokens with a process-wide secret and
// a fixed HS256 algorithm. It is constructed once from configuration and is
// safe for concurrent use; there is no ambient global secret.
type TokenIssuer struct {
	secret   []byte
	lifetime time.Duration
}

// NewTokenIssuer builds a TokenIssuer from the auth configuration. Outside
// dev mode the secret is required (enforced by config.Validate); in dev mode
// an empty secret is replaced by a random throwaway one, so tokens do not
// survive restarts.
func NewTokenIssuer(cfg config.AuthConfig) (*TokenIssuer, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		if !cfg.DevMode {
			return nil, errors.New("jwt secret is required outside dev mode")
		}
		secret = randomSecret()
		slog.Warn("auth.jwt_secret not set; using a generated secret, sessions will not persist across restarts")
	}
	if len(secret) < 32 {
		slog.Warn("auth.jwt_secret is shorter than the recommended 32 characters")
	}

	lifetime := cfg.TokenLifetime
	if lifetime == 0 {
		lifetime = 30 * time.Minute
	}

	return &TokenIssuer{secret: []byte(secret), lifetime: lifetime}, nil
}

// randomSecret creates a cryptographically secure random secret
func randomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a less secure but functional secret
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// Issue creates a signed token asserting that adminID administers the
// organization identified by organizationID. The expiry is the configured
// lifetime from now.
func (ti *TokenIssuer) Issue(adminID, organizationID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		AdminID:        adminID,
		OrganizationID: organizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "org-registry",
			Subject:   adminID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(ti.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verify parses and validates a token string, returning its claims.
// Returns ErrTokenExpired for a structurally valid token past its expiry and
// ErrTokenInvalid for anything else (bad signature, wrong algorithm,
// malformed payload). No other validation is performed.
func (ti *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return ti.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
