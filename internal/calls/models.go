package calls

import (
	"context"
	"errors"
	"time"
)

// CallSession is one outbound contact attempt, owned by the operator who started it.
//
// Lifecycle: created Active by StartCall, closed once by UpdateStatus with a terminal
// disposition. A terminal session is never reopened.
type CallSession struct {
	ID         string     `json:"id" db:"id"`
	OperatorID string     `json:"operator_id" db:"operator_id"`
	ClientID   string     `json:"client_id" db:"client_id"`
	CampaignID string     `json:"campaign_id" db:"campaign_id"`
	Status     Status     `json:"status" db:"status"`
	Notes      string     `json:"notes" db:"notes"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

// Duration is zero while the session is active.
func (s CallSession) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

type Status string

const (
	StatusActive               Status = "active"
	StatusCompleted            Status = "completed"
	StatusAppointmentScheduled Status = "appointment_scheduled"
	StatusNoAnswer             Status = "no_answer"
	StatusMissed               Status = "missed"
)

// Terminal reports whether s is one of the four dispositions that end a call.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusAppointmentScheduled, StatusNoAnswer, StatusMissed:
		return true
	default:
		return false
	}
}

// TerminalStatuses lists the dispositions in display order.
func TerminalStatuses() []Status {
	return []Status{StatusCompleted, StatusAppointmentScheduled, StatusNoAnswer, StatusMissed}
}

// SessionPatch is the set of fields UpdateStatus writes.
type SessionPatch struct {
	Status  Status
	EndedAt time.Time
	Notes   string
}

var ErrNotFound = errors.New("calls: session not found")

// Repository persists call sessions.
type Repository interface {
	CreateSession(ctx context.Context, s CallSession) error
	GetSession(ctx context.Context, id string) (CallSession, error)
	// UpdateSession applies p to an active session and returns the stored row.
	UpdateSession(ctx context.Context, id string, p SessionPatch) (CallSession, error)
	// ActiveSession returns the operator's active session, or ErrNotFound.
	ActiveSession(ctx context.Context, operatorID string) (CallSession, error)
}

// Resolver checks that referenced clients and campaigns exist.
type Resolver interface {
	ClientExists(ctx context.Context, id string) (bool, error)
	CampaignExists(ctx context.Context, id string) (bool, error)
}

// ActiveLease is an optional cross-process guard that lets only one console hold an
// active call per operator.
type ActiveLease interface {
	Acquire(ctx context.Context, operatorID, callID string) (bool, error)
	Release(ctx context.Context, operatorID, callID string) error
}
