package httpapi

import (
	"net/http"
	"strings"

	"call-console/internal/calls"

	"github.com/gin-gonic/gin"
)

type startCallRequest struct {
	ClientID   string `json:"client_id"`
	CampaignID string `json:"campaign_id"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h Handlers) manager(c *gin.Context) (*calls.Manager, bool) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return nil, false
	}
	s, ok := session(c)
	if !ok {
		return nil, false
	}
	m, err := h.Calls.For(c.Request.Context(), s)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return m, true
}

func (h Handlers) StartCall(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s, err := m.StartCall(c.Request.Context(), req.ClientID, req.CampaignID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h Handlers) ActiveCall(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	s, ok := m.Active()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h Handlers) UpdateCallStatus(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	status := calls.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	s, err := m.UpdateStatus(c.Request.Context(), c.Param("call_id"), status, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// CallStatuses lists the dispositions an operator can pick.
func (h Handlers) CallStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"statuses": calls.TerminalStatuses()})
}
