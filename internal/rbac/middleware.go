package rbac

import (
	"net/http"
	"slices"

	"call-console/internal/auth"
	"call-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequireSession rejects requests without an operator session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := auth.SessionFrom(c.Request.Context()); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "operator session required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole admits operators holding one of allowed. super_admin is always admitted.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowed = slices.Clone(allowed)
	return func(c *gin.Context) {
		s, err := auth.SessionFrom(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if IsSuperAdmin(s.Role) || slices.Contains(allowed, s.Role) {
			c.Next()
			return
		}
		logger.FromGin(c).Info("access denied", "operator_id", s.OperatorID, "role", s.Role, "path", c.FullPath())
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}
