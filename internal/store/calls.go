package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"call-console/internal/apperr"
	"call-console/internal/calls"
	"call-console/internal/notify"
	"call-console/pkg/utils"
)

const activeSessionIndex = "call_sessions_one_active"

const sessionColumns = `id, operator_id, client_id, campaign_id, status, notes, started_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (calls.CallSession, error) {
	var s calls.CallSession
	var ended sql.NullTime
	if err := row.Scan(
		&s.ID,
		&s.OperatorID,
		&s.ClientID,
		&s.CampaignID,
		&s.Status,
		&s.Notes,
		&s.StartedAt,
		&ended,
	); err != nil {
		return calls.CallSession{}, err
	}
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	return s, nil
}

func (p *Postgres) CreateSession(ctx context.Context, s calls.CallSession) error {
	const q = `
INSERT INTO call_sessions (
  id, operator_id, client_id, campaign_id, status, notes, started_at, ended_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	var ended any
	if s.EndedAt != nil {
		ended = *s.EndedAt
	}
	_, err := p.db.ExecContext(ctx, q,
		s.ID,
		s.OperatorID,
		s.ClientID,
		s.CampaignID,
		s.Status,
		s.Notes,
		s.StartedAt,
		ended,
	)
	if err != nil {
		if utils.IsUniqueViolation(err, activeSessionIndex) {
			return apperr.Invalid("call", "operator already has an active call session")
		}
		return err
	}
	p.publish(ctx, notify.TableCallSessions, notify.OpInsert, s.ID)
	return nil
}

func (p *Postgres) GetSession(ctx context.Context, id string) (calls.CallSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM call_sessions WHERE id = $1`
	s, err := scanSession(p.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return calls.CallSession{}, calls.ErrNotFound
	}
	return s, err
}

// UpdateSession locks the row and closes it only while it is still active.
func (p *Postgres) UpdateSession(ctx context.Context, id string, patch calls.SessionPatch) (calls.CallSession, error) {
	var out calls.CallSession
	err := utils.WithTx(ctx, p.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		q := `SELECT ` + sessionColumns + ` FROM call_sessions WHERE id = $1 FOR UPDATE`
		cur, err := scanSession(tx.QueryRowContext(ctx, q, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return calls.ErrNotFound
			}
			return err
		}
		if cur.Status != calls.StatusActive {
			return calls.ErrNotFound
		}

		const upd = `
UPDATE call_sessions
SET status = $2, ended_at = $3, notes = $4
WHERE id = $1
RETURNING ` + sessionColumns
		out, err = scanSession(tx.QueryRowContext(ctx, upd, id, patch.Status, patch.EndedAt, patch.Notes))
		return err
	})
	if err != nil {
		return calls.CallSession{}, err
	}
	p.publish(ctx, notify.TableCallSessions, notify.OpUpdate, id)
	return out, nil
}

func (p *Postgres) ActiveSession(ctx context.Context, operatorID string) (calls.CallSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM call_sessions WHERE operator_id = $1 AND status = 'active' LIMIT 1`
	s, err := scanSession(p.db.QueryRowContext(ctx, q, operatorID))
	if errors.Is(err, sql.ErrNoRows) {
		return calls.CallSession{}, calls.ErrNotFound
	}
	return s, err
}

// ListSessions returns sessions started in [from, to), optionally within one campaign.
func (p *Postgres) ListSessions(ctx context.Context, from, to time.Time, campaignID string) ([]calls.CallSession, error) {
	q := `SELECT ` + sessionColumns + `
FROM call_sessions
WHERE started_at >= $1 AND started_at < $2 AND ($3 = '' OR campaign_id = $3)
ORDER BY started_at`
	rows, err := p.db.QueryContext(ctx, q, from, to, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]calls.CallSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ClientExists(ctx context.Context, id string) (bool, error) {
	return p.exists(ctx, `SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)`, id)
}

func (p *Postgres) CampaignExists(ctx context.Context, id string) (bool, error) {
	return p.exists(ctx, `SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1 AND active)`, id)
}

func (p *Postgres) exists(ctx context.Context, q, id string) (bool, error) {
	var ok bool
	if err := p.db.QueryRowContext(ctx, q, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
