package calls

import (
	"context"
	"sync"

	"call-console/internal/apperr"
)

// MemoryRepo is an in-memory Repository for tests. It enforces one active session
// per operator the way the Postgres partial unique index does.
type MemoryRepo struct {
	mu       sync.Mutex
	sessions map[string]CallSession
	order    []string
	err      error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{sessions: map[string]CallSession{}} }

// FailWith makes every following call return err until cleared with nil.
func (r *MemoryRepo) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *MemoryRepo) CreateSession(ctx context.Context, s CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if s.Status == StatusActive {
		for _, cur := range r.sessions {
			if cur.OperatorID == s.OperatorID && cur.Status == StatusActive {
				return apperr.Invalid("call", "operator already has an active call session")
			}
		}
	}
	r.sessions[s.ID] = s
	r.order = append(r.order, s.ID)
	return nil
}

func (r *MemoryRepo) GetSession(ctx context.Context, id string) (CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return CallSession{}, r.err
	}
	s, ok := r.sessions[id]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepo) UpdateSession(ctx context.Context, id string, p SessionPatch) (CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return CallSession{}, r.err
	}
	s, ok := r.sessions[id]
	if !ok || s.Status != StatusActive {
		return CallSession{}, ErrNotFound
	}
	ended := p.EndedAt
	s.Status = p.Status
	s.EndedAt = &ended
	s.Notes = p.Notes
	r.sessions[id] = s
	return s, nil
}

func (r *MemoryRepo) ActiveSession(ctx context.Context, operatorID string) (CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return CallSession{}, r.err
	}
	for _, id := range r.order {
		if s := r.sessions[id]; s.OperatorID == operatorID && s.Status == StatusActive {
			return s, nil
		}
	}
	return CallSession{}, ErrNotFound
}

// Sessions returns every stored session in creation order.
func (r *MemoryRepo) Sessions() []CallSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallSession, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id])
	}
	return out
}

// StaticResolver resolves ids against fixed sets.
type StaticResolver struct {
	Clients   map[string]bool
	Campaigns map[string]bool
}

func (r StaticResolver) ClientExists(ctx context.Context, id string) (bool, error) {
	return r.Clients[id], nil
}

func (r StaticResolver) CampaignExists(ctx context.Context, id string) (bool, error) {
	return r.Campaigns[id], nil
}
