package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"call-console/internal/apperr"
	"call-console/internal/audit"
	"call-console/internal/logtail"

	"github.com/gin-gonic/gin"
)

type tailView struct {
	Filter  audit.LogFilter `json:"filter"`
	Cursor  *time.Time      `json:"cursor"`
	Events  []audit.Event   `json:"events"`
	Pending int             `json:"pending"`
	Banner  string          `json:"banner,omitempty"`
}

func view(t *logtail.Tail) tailView {
	v := tailView{
		Filter:  t.Filter(),
		Cursor:  t.Cursor(),
		Events:  t.Visible(),
		Pending: len(t.Pending()),
	}
	if err := t.LastError(); err != nil {
		v.Banner = err.Error()
	}
	return v
}

func (h Handlers) tail(c *gin.Context) (*logtail.Tail, bool) {
	if h.Logs == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "logs not configured"})
		return nil, false
	}
	s, ok := session(c)
	if !ok {
		return nil, false
	}
	return h.Logs.For(s.OperatorID), true
}

func parseFilter(c *gin.Context) (audit.LogFilter, error) {
	f := audit.LogFilter{
		Type:   audit.EventType(c.Query("type")),
		Status: audit.Status(c.Query("status")),
		Search: c.Query("search"),
	}
	var err error
	if f.From, err = parseTime(c.Query("from"), "from"); err != nil {
		return audit.LogFilter{}, err
	}
	if f.To, err = parseTime(c.Query("to"), "to"); err != nil {
		return audit.LogFilter{}, err
	}
	return f, nil
}

func parseTime(v, field string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, apperr.Invalid(field, "must be an RFC 3339 timestamp")
	}
	return t, nil
}

// LoadLogs replaces the operator's view with the newest events matching the query.
func (h Handlers) LoadLogs(c *gin.Context) {
	t, ok := h.tail(c)
	if !ok {
		return
	}
	f, err := parseFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := t.Load(c.Request.Context(), f); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view(t))
}

// ViewLogs returns the current view without querying.
func (h Handlers) ViewLogs(c *gin.Context) {
	t, ok := h.tail(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view(t))
}

// PollLogs runs one poll. A failed poll keeps the view and reports a banner.
func (h Handlers) PollLogs(c *gin.Context) {
	t, ok := h.tail(c)
	if !ok {
		return
	}
	res, _ := t.Poll(c.Request.Context())
	v := view(t)
	c.JSON(http.StatusOK, gin.H{"result": res, "pending": v.Pending, "banner": v.Banner})
}

func (h Handlers) MergeLogs(c *gin.Context) {
	t, ok := h.tail(c)
	if !ok {
		return
	}
	n := t.Merge()
	c.JSON(http.StatusOK, gin.H{"merged": n, "view": view(t)})
}

// ExportLogs downloads the visible events as json or csv.
func (h Handlers) ExportLogs(c *gin.Context) {
	t, ok := h.tail(c)
	if !ok {
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", logtail.FormatJSON))
	if format != logtail.FormatJSON && format != logtail.FormatCSV {
		writeError(c, apperr.Invalid("format", "must be json or csv"))
		return
	}
	name := fmt.Sprintf("logs-%s.%s", h.now().UTC().Format("20060102-150405"), format)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", logtail.ContentType(format))
	c.Status(http.StatusOK)
	if err := t.Export(c.Writer, format); err != nil {
		_ = c.Error(err)
	}
}
