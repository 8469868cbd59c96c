package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

// FailWith makes every following call return err until cleared with nil.
func (r *MemoryRepo) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

// Query returns matching events ordered by CreatedAt descending.
func (r *MemoryRepo) Query(ctx context.Context, f LogFilter, opts QueryOptions) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]Event, 0)
	for _, e := range r.events {
		if opts.After != nil && !e.CreatedAt.After(*opts.After) {
			continue
		}
		if !f.Matches(e) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
