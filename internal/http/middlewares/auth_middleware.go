package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/booknest/booknest/internal/auth"
	"github.com/booknest/booknest/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Small interfaces so tests can fake both sides easily.
type TokenVerifier interface {
	ParseAndValidate(tokenStr string) (*auth.Claims, error)
}

type UserLoader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type AuthMiddleware struct {
	jwt   TokenVerifier
	users UserLoader
}

func NewAuthMiddleware(jwt TokenVerifier, users UserLoader) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, users: users}
}

// Authenticate is a silent passthrough: a missing or invalid token leaves
// the request anonymous instead of rejecting it. Enforcement happens in
// RequireUser / RequireRole, so the login and register routes stay open.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.Next()
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))

		if raw == "" {
			c.Next()
			return
		}

		claims, err := m.jwt.ParseAndValidate(raw)

		if err != nil {
			c.Next()
			return
		}

		u, err := m.users.GetByEmail(c.Request.Context(), claims.Subject)

		if err != nil {
			c.Next()
			return
		}

		c.Set(CtxUser, u)
		c.Next()
	}
}

func (m *AuthMiddleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, ok := UserFromContext(c)

		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}
		c.Next()
	}
}

func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(CtxUser)

	if !ok {
		return user.User{}, false
	}

	u, ok := v.(user.User)
	return u, ok
}
