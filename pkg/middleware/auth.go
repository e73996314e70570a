package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/call-center/pkg/auth"
	"github.com/troikatech/call-center/pkg/errors"
)

// AuthMiddleware requires a bearer token signed with cfg.Secret and stores
// its subject and scopes in the context.
func AuthMiddleware(cfg auth.TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			errors.Unauthorized(c, "authorization header required")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			errors.Unauthorized(c, "invalid authorization format")
			return
		}

		claims, err := auth.ParseToken(strings.TrimSpace(token), cfg)
		if err != nil {
			errors.Unauthorized(c, "invalid or expired token")
			return
		}

		c.Set("subject", claims.Subject)
		c.Set("claims", claims)
		c.Next()
	}
}

// RequireScope lets the request through when the token carries scope. It
// must run after AuthMiddleware.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("claims")
		claims, ok := value.(*auth.TokenClaims)
		if !exists || !ok {
			errors.Forbidden(c, "no token claims found")
			return
		}
		if !claims.HasScope(scope) {
			errors.Forbidden(c, "insufficient scope, "+scope+" is required")
			return
		}
		c.Next()
	}
}
