package calls

import (
	"context"
	"sync"

	"call-console/internal/auth"
)

// Registry hands out one Manager per operator.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	managers map[string]*Manager
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, managers: map[string]*Manager{}}
}

// For returns the operator's Manager, creating it on first use. A new Manager adopts
// the operator's active session from the store; failure to do so is logged and the
// Manager starts idle.
func (r *Registry) For(ctx context.Context, s auth.Session) (*Manager, error) {
	if m, ok := r.lookup(s.OperatorID); ok {
		return m, nil
	}

	// Restore runs unlocked so a slow store only delays this operator.
	m, err := NewManager(s, r.deps)
	if err != nil {
		return nil, err
	}
	if err := m.Restore(ctx); err != nil {
		m.log.Warn("active session not restored", "err", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.managers[s.OperatorID]; ok {
		return cur, nil
	}
	r.managers[s.OperatorID] = m
	return m, nil
}

func (r *Registry) lookup(operatorID string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.managers[operatorID]
	return m, ok
}
