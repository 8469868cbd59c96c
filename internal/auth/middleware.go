package auth

import (
	"net/http"
	"strings"
	"time"

	"call-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequireAccessToken verifies the bearer access token, puts the operator Session in
// the request context and tags the request logger with the operator id.
// Role checks belong to internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
		if err != nil {
			logger.FromGin(c).Debug("access token rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		s := claims.Session()
		l := logger.FromGin(c).With("operator_id", s.OperatorID)
		c.Set("logger", l)
		ctx := logger.With(WithSession(c.Request.Context(), s), l)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
