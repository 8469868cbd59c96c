package scripts

import (
	"context"
	"errors"
	"time"
)

// Document is the shared call script and AI prompt. There is one per scope:
// the empty scope is the global script, otherwise the scope is a campaign id.
type Document struct {
	ID           string    `json:"id" db:"id"`
	Scope        string    `json:"scope" db:"scope"`
	ScriptText   string    `json:"script" db:"script_text"`
	AIPromptText string    `json:"ai_prompt" db:"ai_prompt_text"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
	Revision     int64     `json:"revision" db:"revision"`
}

var ErrNotFound = errors.New("scripts: document not found")

// Repository persists script documents.
type Repository interface {
	// LoadDocument returns the scope's document, creating an empty one if missing.
	LoadDocument(ctx context.Context, scope string) (Document, error)
	// UpdateDocument overwrites both texts and bumps the revision.
	UpdateDocument(ctx context.Context, id, scriptText, aiPromptText string, at time.Time) (Document, error)
}

// State is a point-in-time view of a Controller.
type State struct {
	DocumentID   string     `json:"document_id"`
	Scope        string     `json:"scope"`
	ScriptText   string     `json:"script"`
	AIPromptText string     `json:"ai_prompt"`
	Revision     int64      `json:"revision"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Loaded       bool       `json:"loaded"`
	Dirty        bool       `json:"dirty"`
	SavePending  bool       `json:"save_pending"`
	LastSavedAt  *time.Time `json:"last_saved_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}
