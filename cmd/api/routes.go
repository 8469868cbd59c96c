package main

import (
	"database/sql"
	"net/http"
	"time"

	"call-console/internal/audit"
	"call-console/internal/config"
	"call-console/internal/telephony"
	"call-console/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerPublicRoutes wires health and provider webhooks.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerPublicRoutes(r *gin.Engine, tw config.TwilioConfig, events audit.EventLogger, db *sql.DB) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public, signature checked).
	h := telephony.TwilioStatusHandler{
		Events:      events,
		AccountSID:  tw.AccountSID,
		AuthToken:   tw.AuthToken,
		CallbackURL: tw.StatusCallbackURL,
	}
	r.POST("/webhooks/twilio/status", h.HandleStatus)
}
