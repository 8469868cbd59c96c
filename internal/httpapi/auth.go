package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"call-console/internal/audit"
	"call-console/internal/auth"
	"call-console/internal/rbac"
	"call-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	OperatorID string `json:"operator_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
}

// Login provisions the operator and issues a JWT token pair.
//
// Only the development login exists here; credential checks belong to the identity
// provider in front of the console.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	if !h.DevLogin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "development login disabled"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s := auth.Session{
		OperatorID: strings.TrimSpace(req.OperatorID),
		Email:      strings.TrimSpace(req.Email),
		Role:       strings.TrimSpace(req.Role),
	}
	if s.OperatorID == "" || !rbac.IsKnown(s.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "operator_id and a known role are required"})
		return
	}

	ctx := c.Request.Context()
	if h.Provisioner != nil {
		op, err := auth.Provision(ctx, h.Provisioner, s, h.now())
		if err != nil {
			h.logEvent(c, audit.Entry{
				Type:    audit.EventTypeLogin,
				Status:  audit.StatusError,
				Message: "login refused",
				Actor:   s.OperatorID,
				Data:    map[string]string{"error": err.Error()},
			})
			if errors.Is(err, auth.ErrOperatorInactive) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "operator inactive"})
				return
			}
			logger.FromGin(c).Error("operator provisioning failed", "operator_id", s.OperatorID, "err", err)
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "record store unavailable"})
			return
		}
		// An existing operator keeps its stored role.
		if rbac.IsKnown(op.Role) {
			s.Role = op.Role
		}
	}

	pair, err := h.Auth.IssuePair(h.now(), s)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	h.logEvent(c, audit.Entry{
		Type:    audit.EventTypeLogin,
		Status:  audit.StatusSuccess,
		Message: "operator logged in",
		Actor:   s.OperatorID,
		Data:    map[string]string{"role": s.Role},
	})
	c.JSON(http.StatusOK, tokenResponse(pair))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new pair carrying the operator's stored role.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil || h.Operators == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	now := h.now()
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, now)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	op, err := h.Operators.GetOperator(c.Request.Context(), claims.OperatorID)
	switch {
	case errors.Is(err, auth.ErrOperatorNotFound):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown operator"})
		return
	case err != nil:
		logger.FromGin(c).Error("operator lookup failed", "operator_id", claims.OperatorID, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "record store unavailable"})
		return
	case !op.Active:
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "operator inactive"})
		return
	}
	pair, err := h.Auth.Refresh(req.RefreshToken, op.Role, now)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, tokenResponse(pair))
}

func tokenResponse(p auth.TokenPair) gin.H {
	return gin.H{
		"access_token":  p.AccessToken,
		"refresh_token": p.RefreshToken,
		"expires_at":    p.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// Logout records the event; tokens simply expire.
func (h Handlers) Logout(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	h.logEvent(c, audit.Entry{
		Type:    audit.EventTypeLogout,
		Status:  audit.StatusInfo,
		Message: "operator logged out",
		Actor:   s.OperatorID,
	})
	c.Status(http.StatusNoContent)
}

func (h Handlers) Me(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"operator_id": s.OperatorID, "email": s.Email, "role": s.Role})
}

func (h Handlers) logEvent(c *gin.Context, e audit.Entry) {
	if h.Events != nil {
		h.Events.LogEvent(c.Request.Context(), e)
	}
}
