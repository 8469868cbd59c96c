package httpapi

import (
	"net/http"
	"time"

	"call-console/internal/reporting"

	"github.com/gin-gonic/gin"
)

const defaultReportWindow = 7 * 24 * time.Hour

func (h Handlers) reportRange(c *gin.Context) (reporting.TimeRange, bool) {
	from, err := parseTime(c.Query("from"), "from")
	if err != nil {
		writeError(c, err)
		return reporting.TimeRange{}, false
	}
	to, err := parseTime(c.Query("to"), "to")
	if err != nil {
		writeError(c, err)
		return reporting.TimeRange{}, false
	}
	if to.IsZero() {
		to = h.now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-defaultReportWindow)
	}
	return reporting.TimeRange{From: from, To: to}, true
}

func (h Handlers) CallsReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reports not configured"})
		return
	}
	r, ok := h.reportRange(c)
	if !ok {
		return
	}
	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		Range:      r,
		CampaignID: c.Query("campaign_id"),
		OperatorID: c.Query("operator_id"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) OperatorsReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reports not configured"})
		return
	}
	r, ok := h.reportRange(c)
	if !ok {
		return
	}
	out, err := h.Reports.OperatorLeaderboard(c.Request.Context(), r, c.Query("campaign_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"operators": out})
}
