package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (m *AuthMiddleware) RequireRole(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := UserFromContext(c)

		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}

		if !u.HasRole(required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": required + " role required",
			})
			return
		}
		c.Next()
	}
}
