package store

import (
	"context"
	"fmt"
	"strings"

	"call-console/internal/audit"
	"call-console/internal/notify"
)

const logColumns = `id, type, status, message, data, created_at, actor_ref, ip, device, region, external_ref`

// Append inserts one audit row. Rows are never updated or deleted.
func (p *Postgres) Append(ctx context.Context, e audit.Event) error {
	q := `INSERT INTO logs (` + logColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	var data any
	if len(e.Data) > 0 {
		data = []byte(e.Data)
	}
	_, err := p.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.Status,
		e.Message,
		data,
		e.CreatedAt,
		e.ActorRef,
		e.IP,
		e.Device,
		e.Region,
		e.ExternalRef,
	)
	if err != nil {
		return err
	}
	p.publish(ctx, notify.TableLogs, notify.OpInsert, e.ID)
	return nil
}

// Query returns matching rows ordered by created_at descending.
func (p *Postgres) Query(ctx context.Context, f audit.LogFilter, opts audit.QueryOptions) ([]audit.Event, error) {
	q, args := buildLogQuery(f, opts)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]audit.Event, 0)
	for rows.Next() {
		var e audit.Event
		var data []byte
		if err := rows.Scan(
			&e.ID,
			&e.Type,
			&e.Status,
			&e.Message,
			&data,
			&e.CreatedAt,
			&e.ActorRef,
			&e.IP,
			&e.Device,
			&e.Region,
			&e.ExternalRef,
		); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			e.Data = append([]byte(nil), data...)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func buildLogQuery(f audit.LogFilter, opts audit.QueryOptions) (string, []any) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.From.IsZero() {
		where = append(where, "created_at >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at <= "+arg(f.To))
	}
	if opts.After != nil {
		where = append(where, "created_at > "+arg(*opts.After))
	}
	if f.Type != "" {
		where = append(where, "type = "+arg(string(f.Type)))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.Search != "" {
		p := arg("%" + escapeLike(f.Search) + "%")
		where = append(where, fmt.Sprintf("(message ILIKE %[1]s OR type ILIKE %[1]s OR actor_ref ILIKE %[1]s OR external_ref ILIKE %[1]s)", p))
	}

	var b strings.Builder
	b.WriteString("SELECT " + logColumns + " FROM logs")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + arg(opts.Limit))
	}
	return b.String(), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
