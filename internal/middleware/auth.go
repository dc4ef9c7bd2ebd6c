package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/org-registry/org-registry/internal/auth"
)

const (
	// ClaimsKey is the gin.Context key under which verified token claims are stored.
	ClaimsKey = "claims"

	// BearerTokenKey is the gin.Context key holding the raw bearer token string.
	BearerTokenKey = "bearer_token"
)

// BearerAuth returns a Gin handler that requires a valid bearer token issued
// by the credential service. Token verification is entirely stateless: an
// HMAC check against the signing secret, no database round-trip.
//
// On success the verified claims and the raw token are stored in the context
// so handlers can enforce per-organization ownership. On failure the request
// is aborted with 401 and a WWW-Authenticate challenge.
func BearerAuth(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			unauthorized(c, "Missing authorization header")
			return
		}

		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(c, "Authorization header must start with 'Bearer '")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			unauthorized(c, "Authorization token is empty")
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				unauthorized(c, "Token expired")
				return
			}
			unauthorized(c, "Invalid token")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(BearerTokenKey, token)

		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="org-registry"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
