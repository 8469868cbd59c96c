package logtail

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"call-console/internal/apperr"
	"call-console/internal/audit"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// csvColumns follows the JSON field order of audit.Event.
var csvColumns = []string{
	"id", "type", "status", "message", "data", "created_at",
	"actor_ref", "ip", "device", "region", "external_ref",
}

// Export writes the visible list in format.
func (t *Tail) Export(w io.Writer, format string) error {
	return Write(w, format, t.Visible())
}

// Write serializes events as json (2-space indented array) or csv (CRLF, every
// cell quoted, data JSON-encoded). An empty list is "[]" in json and no output in csv.
func Write(w io.Writer, format string, events []audit.Event) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		if events == nil {
			events = []audit.Event{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(events)
	case FormatCSV:
		return writeCSV(w, events)
	default:
		return apperr.Invalid("format", "must be json or csv")
	}
}

// ContentType returns the MIME type for a supported format.
func ContentType(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), FormatCSV) {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// encoding/csv only quotes fields that need it; every cell is quoted here.
func writeCSV(w io.Writer, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	var b strings.Builder
	writeRow(&b, csvColumns)
	for _, e := range events {
		writeRow(&b, []string{
			e.ID,
			string(e.Type),
			string(e.Status),
			e.Message,
			dataCell(e.Data),
			e.CreatedAt.UTC().Format(time.RFC3339Nano),
			e.ActorRef,
			e.IP,
			e.Device,
			e.Region,
			e.ExternalRef,
		})
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeRow(b *strings.Builder, cells []string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(c, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteString("\r\n")
}

func dataCell(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
