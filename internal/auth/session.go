package auth

import (
	"context"
	"errors"
	"time"
)

// Session identifies the operator behind a console action. It is passed explicitly
// to per-operator components instead of being read from a global.
type Session struct {
	OperatorID string
	Email      string
	Role       string
}

func (s Session) Valid() bool { return s.OperatorID != "" && s.Role != "" }

// Operator is the persisted console user record.
type Operator struct {
	ID          string     `json:"id" db:"id"`
	Email       string     `json:"email" db:"email"`
	Role        string     `json:"role" db:"role"`
	Active      bool       `json:"active" db:"active"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
}

var (
	ErrOperatorInactive = errors.New("auth: operator inactive")
	ErrOperatorNotFound = errors.New("auth: operator not found")
)

// Provisioner ensures an operator record exists. EnsureOperator is an idempotent
// upsert: an existing row keeps its role and active flag.
type Provisioner interface {
	EnsureOperator(ctx context.Context, op Operator) (Operator, error)
	TouchLogin(ctx context.Context, operatorID string, at time.Time) error
}

// OperatorLookup reads the stored operator record. Token refresh uses it to pick up
// role changes and deactivation.
type OperatorLookup interface {
	GetOperator(ctx context.Context, id string) (Operator, error)
}

// Provision upserts the session's operator and records the login time.
// Inactive operators are refused.
func Provision(ctx context.Context, p Provisioner, s Session, now time.Time) (Operator, error) {
	if p == nil {
		return Operator{}, errors.New("auth: provisioner not configured")
	}
	if !s.Valid() {
		return Operator{}, errors.New("auth: invalid session")
	}
	op, err := p.EnsureOperator(ctx, Operator{
		ID:        s.OperatorID,
		Email:     s.Email,
		Role:      s.Role,
		Active:    true,
		CreatedAt: now.UTC(),
	})
	if err != nil {
		return Operator{}, err
	}
	if !op.Active {
		return op, ErrOperatorInactive
	}
	if err := p.TouchLogin(ctx, op.ID, now.UTC()); err != nil {
		return op, err
	}
	return op, nil
}
