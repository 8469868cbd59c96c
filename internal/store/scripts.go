package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"call-console/internal/notify"
	"call-console/internal/scripts"

	"github.com/google/uuid"
)

const scriptColumns = `id, scope, script_text, ai_prompt_text, revision, updated_at`

func scanDocument(row rowScanner) (scripts.Document, error) {
	var d scripts.Document
	err := row.Scan(
		&d.ID,
		&d.Scope,
		&d.ScriptText,
		&d.AIPromptText,
		&d.Revision,
		&d.UpdatedAt,
	)
	return d, err
}

// LoadDocument creates the scope's row on first use.
func (p *Postgres) LoadDocument(ctx context.Context, scope string) (scripts.Document, error) {
	const ins = `
INSERT INTO call_scripts (id, scope, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (scope) DO NOTHING
`
	if _, err := p.db.ExecContext(ctx, ins, uuid.NewString(), scope, p.clock().UTC()); err != nil {
		return scripts.Document{}, err
	}
	q := `SELECT ` + scriptColumns + ` FROM call_scripts WHERE scope = $1`
	return scanDocument(p.db.QueryRowContext(ctx, q, scope))
}

func (p *Postgres) UpdateDocument(ctx context.Context, id, scriptText, aiPromptText string, at time.Time) (scripts.Document, error) {
	q := `
UPDATE call_scripts
SET script_text = $2, ai_prompt_text = $3, updated_at = $4, revision = revision + 1
WHERE id = $1
RETURNING ` + scriptColumns
	d, err := scanDocument(p.db.QueryRowContext(ctx, q, id, scriptText, aiPromptText, at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scripts.Document{}, scripts.ErrNotFound
		}
		return scripts.Document{}, err
	}
	p.publish(ctx, notify.TableCallScripts, notify.OpUpdate, d.ID)
	return d, nil
}
