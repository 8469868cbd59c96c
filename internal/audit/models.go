package audit

import (
	"encoding/json"
	"time"
)

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - CreatedAt is non-decreasing per Logger.
// - actor, ip and device capture are best-effort; do not block critical flows on audit failures.
//
// Storage (Postgres): table logs with an INSERT-only grant.
type Event struct {
	ID      string    `json:"id" db:"id"`
	Type    EventType `json:"type" db:"type"`
	Status  Status    `json:"status" db:"status"`
	Message string    `json:"message" db:"message"`

	// Data is an opaque JSON payload.
	Data json.RawMessage `json:"data" db:"data"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	ActorRef string `json:"actor_ref" db:"actor_ref"`
	IP       string `json:"ip" db:"ip"`
	Device   string `json:"device" db:"device"`
	Region   string `json:"region" db:"region"`

	// ExternalRef links to a provider record, e.g. a Twilio CallSid.
	ExternalRef string `json:"external_ref" db:"external_ref"`
}

type EventType string

const (
	EventTypeCallInit     EventType = "call_init"
	EventTypeScriptUpdate EventType = "call_script_update"
	EventTypeLogin        EventType = "login"
	EventTypeLogout       EventType = "logout"
	EventTypeTwilioStatus EventType = "twilio_status"
)

type Status string

const (
	StatusInfo    Status = "info"
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

func (s Status) Valid() bool {
	switch s {
	case StatusInfo, StatusSuccess, StatusWarning, StatusError:
		return true
	default:
		return false
	}
}

// Entry is what callers hand to LogEvent. Data is marshalled to JSON.
type Entry struct {
	Type        EventType
	Status      Status
	Message     string
	Data        any
	Actor       string
	IP          string
	Device      string
	Region      string
	ExternalRef string
}
