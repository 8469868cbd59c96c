package audit

import (
	"strings"
	"time"

	"call-console/internal/apperr"
)

// LogFilter parameterizes audit queries. The zero value matches everything.
type LogFilter struct {
	From   time.Time `json:"from,omitempty"`
	To     time.Time `json:"to,omitempty"`
	Type   EventType `json:"type,omitempty"`
	Status Status    `json:"status,omitempty"`
	Search string    `json:"search,omitempty"`
}

// Normalize trims the filter and maps the "all" selector to no restriction.
func (f LogFilter) Normalize() LogFilter {
	f.Type = EventType(strings.TrimSpace(string(f.Type)))
	if f.Type == "all" {
		f.Type = ""
	}
	f.Status = Status(strings.ToLower(strings.TrimSpace(string(f.Status))))
	if f.Status == "all" {
		f.Status = ""
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

func (f LogFilter) Validate() error {
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return apperr.Invalid("from", "must not be after to")
	}
	if f.Status != "" && !f.Status.Valid() {
		return apperr.Invalid("status", "must be one of info, success, warning, error")
	}
	if len(f.Search) > 200 {
		return apperr.Invalid("search", "too long")
	}
	return nil
}

// Matches applies the filter in memory. To is inclusive.
func (f LogFilter) Matches(e Event) bool {
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.CreatedAt.After(f.To) {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		hay := []string{e.Message, string(e.Type), e.ActorRef, e.ExternalRef}
		for _, h := range hay {
			if strings.Contains(strings.ToLower(h), needle) {
				return true
			}
		}
		return false
	}
	return true
}

// QueryOptions bound a query. After is exclusive; Limit <= 0 means no limit.
type QueryOptions struct {
	After *time.Time
	Limit int
}
