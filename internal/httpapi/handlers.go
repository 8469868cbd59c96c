package httpapi

import (
	"errors"
	"net/http"
	"time"

	"call-console/internal/apperr"
	"call-console/internal/audit"
	"call-console/internal/auth"
	"call-console/internal/calls"
	"call-console/internal/logtail"
	"call-console/internal/reporting"
	"call-console/internal/scripts"
	"call-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth        *auth.Manager
	DevLogin    bool
	Provisioner auth.Provisioner
	Operators   auth.OperatorLookup

	Events  audit.EventLogger
	Calls   *calls.Registry
	Scripts *scripts.Registry
	Logs    *logtail.Registry
	Reports *reporting.Service

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// ClientInfo attaches the caller's address and user agent for audit events.
func ClientInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := audit.WithClient(c.Request.Context(), audit.Client{
			IP:     c.ClientIP(),
			Device: c.Request.UserAgent(),
			Region: c.GetHeader("X-Client-Region"),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func session(c *gin.Context) (auth.Session, bool) {
	s, err := auth.SessionFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "operator session required"})
		return auth.Session{}, false
	}
	return s, true
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		return
	case errors.Is(err, reporting.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case apperr.IsAutosave(err):
		logger.FromGin(c).Warn("manual save failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "script could not be saved"})
		return
	case apperr.IsStore(err):
		logger.FromGin(c).Error("store failure", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "record store unavailable"})
		return
	case apperr.IsPoll(err):
		logger.FromGin(c).Warn("log query failed", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "logs temporarily unavailable"})
		return
	}
	logger.FromGin(c).Error("request failed", "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
