package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenVerifier validates a bearer token and returns its subject. The
// Control Surface never issues tokens itself, and never parses a token
// format directly — it only consumes whatever verify function the
// server's owner plugs in at construction time, so a deployment can sit
// behind its own auth provider without this package knowing anything
// about how tokens are minted or signed.
type TokenVerifier func(token string) (subject string, err error)

// AuthMiddleware passes every request through unauthenticated when enabled
// is false. When enabled, it requires a "Bearer <token>" Authorization
// header, verifies it with verify, and stores the resolved subject in the
// Gin context under "subject".
func AuthMiddleware(enabled bool, verify TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			fail(c, http.StatusUnauthorized, "missing bearer token", "AUTH_FAILED")
			c.Abort()
			return
		}
		subject, err := verify(strings.TrimPrefix(header, prefix))
		if err != nil {
			fail(c, http.StatusUnauthorized, err.Error(), "AUTH_FAILED")
			c.Abort()
			return
		}
		c.Set("subject", subject)
		c.Next()
	}
}
