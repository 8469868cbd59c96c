package telephony

import (
	"net/http"

	"call-console/internal/audit"
	"call-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

// TwilioStatusHandler records Twilio call status callbacks in the audit trail.
//
// No business logic here; the call session state machine is not driven by provider
// callbacks.
type TwilioStatusHandler struct {
	Events audit.EventLogger

	// AccountSID, when set, must match the callback's AccountSid.
	AccountSID string
	// AuthToken signs callbacks. Empty disables signature validation (local only).
	AuthToken string
	// CallbackURL is the public URL Twilio posts to. Empty derives it from the request.
	CallbackURL string
}

func (h TwilioStatusHandler) HandleStatus(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Events == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit logger not configured"})
		return
	}

	form, err := ParseTwilioStatusCallback(c.Request)
	if err != nil {
		log.Warn("twilio callback parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	if h.AuthToken != "" {
		sig := c.GetHeader("X-Twilio-Signature")
		if !ValidTwilioSignature(h.AuthToken, h.callbackURL(c), c.Request.PostForm, sig) {
			log.Warn("twilio signature rejected", "call_sid", form.CallSid)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
	}
	if h.AccountSID != "" && form.AccountSid != h.AccountSID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unknown account"})
		return
	}
	if form.CallSid == "" || form.CallStatus == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "CallSid and CallStatus are required"})
		return
	}

	h.Events.LogEvent(c.Request.Context(), form.Entry())
	c.Status(http.StatusNoContent)
}

func (h TwilioStatusHandler) callbackURL(c *gin.Context) string {
	if h.CallbackURL != "" {
		return h.CallbackURL
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}
