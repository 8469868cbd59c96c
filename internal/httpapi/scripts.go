package httpapi

import (
	"net/http"

	"call-console/internal/scripts"

	"github.com/gin-gonic/gin"
)

// editScriptRequest carries edits; absent fields are left unchanged.
type editScriptRequest struct {
	CampaignID string  `json:"campaign_id"`
	Script     *string `json:"script"`
	AIPrompt   *string `json:"ai_prompt"`
}

type saveScriptRequest struct {
	CampaignID string `json:"campaign_id"`
}

func (h Handlers) controller(c *gin.Context, scope string) (*scripts.Controller, bool) {
	if h.Scripts == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scripts not configured"})
		return nil, false
	}
	ctrl, err := h.Scripts.For(c.Request.Context(), scope)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return ctrl, true
}

func (h Handlers) GetScript(c *gin.Context) {
	ctrl, ok := h.controller(c, c.Query("campaign_id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// EditScript buffers edits and lets the debounce persist them.
func (h Handlers) EditScript(c *gin.Context) {
	var req editScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Script == nil && req.AIPrompt == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "script or ai_prompt required"})
		return
	}
	ctrl, ok := h.controller(c, req.CampaignID)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if req.Script != nil {
		ctrl.OnScriptChanged(ctx, *req.Script)
	}
	if req.AIPrompt != nil {
		ctrl.OnPromptChanged(ctx, *req.AIPrompt)
	}
	c.JSON(http.StatusAccepted, ctrl.Snapshot())
}

func (h Handlers) SaveScript(c *gin.Context) {
	var req saveScriptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	ctrl, ok := h.controller(c, req.CampaignID)
	if !ok {
		return
	}
	if err := ctrl.Save(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}
