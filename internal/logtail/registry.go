package logtail

import (
	"context"
	"sync"
	"time"

	"call-console/internal/audit"
)

// Registry keeps one Tail per operator and drives their polling.
type Registry struct {
	q        audit.Querier
	opts     Options
	interval time.Duration

	mu    sync.Mutex
	ctx   context.Context
	tails map[string]*Tail
}

func NewRegistry(q audit.Querier, opts Options, interval time.Duration) *Registry {
	return &Registry{q: q, opts: opts, interval: interval, tails: map[string]*Tail{}}
}

// Start makes every current and future Tail poll until ctx is done.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx != nil {
		return
	}
	r.ctx = ctx
	for _, t := range r.tails {
		go t.Run(ctx, r.interval)
	}
}

func (r *Registry) For(operatorID string) *Tail {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tails[operatorID]; ok {
		return t
	}
	t := New(r.q, r.opts)
	r.tails[operatorID] = t
	if r.ctx != nil {
		go t.Run(r.ctx, r.interval)
	}
	return t
}

// KickAll requests an early poll from every tail.
func (r *Registry) KickAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tails {
		t.Kick()
	}
}
