package reporting

import (
	"context"
	"sync"
	"time"

	"call-console/internal/calls"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early development.
type MemoryRepo struct {
	mu sync.Mutex

	Sessions []calls.CallSession
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListSessions(ctx context.Context, from, to time.Time, campaignID string) ([]calls.CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.CallSession, 0)
	for _, s := range r.Sessions {
		if s.StartedAt.Before(from) || !s.StartedAt.Before(to) {
			continue
		}
		if campaignID != "" && s.CampaignID != campaignID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
