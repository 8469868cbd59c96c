package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"call-console/internal/auth"
)

// EnsureOperator inserts the operator if missing. An existing row keeps its role
// and active flag; only a non-empty email is refreshed.
func (p *Postgres) EnsureOperator(ctx context.Context, op auth.Operator) (auth.Operator, error) {
	const q = `
INSERT INTO operators (id, email, role, active, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id)
DO UPDATE SET email = COALESCE(NULLIF(EXCLUDED.email, ''), operators.email)
RETURNING id, email, role, active, created_at, last_login_at
`
	var out auth.Operator
	var last sql.NullTime
	if err := p.db.QueryRowContext(ctx, q, op.ID, op.Email, op.Role, op.Active, op.CreatedAt).Scan(
		&out.ID,
		&out.Email,
		&out.Role,
		&out.Active,
		&out.CreatedAt,
		&last,
	); err != nil {
		return auth.Operator{}, err
	}
	if last.Valid {
		t := last.Time
		out.LastLoginAt = &t
	}
	return out, nil
}

func (p *Postgres) TouchLogin(ctx context.Context, operatorID string, at time.Time) error {
	_, err := p.db.ExecContext(ctx, `UPDATE operators SET last_login_at = $2 WHERE id = $1`, operatorID, at)
	return err
}

func (p *Postgres) GetOperator(ctx context.Context, id string) (auth.Operator, error) {
	const q = `SELECT id, email, role, active, created_at, last_login_at FROM operators WHERE id = $1`
	var out auth.Operator
	var last sql.NullTime
	err := p.db.QueryRowContext(ctx, q, id).Scan(&out.ID, &out.Email, &out.Role, &out.Active, &out.CreatedAt, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Operator{}, auth.ErrOperatorNotFound
	}
	if err != nil {
		return auth.Operator{}, err
	}
	if last.Valid {
		t := last.Time
		out.LastLoginAt = &t
	}
	return out, nil
}
