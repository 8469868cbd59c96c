package scripts

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Registry keeps one loaded Controller per scope.
type Registry struct {
	repo Repository
	opts Options

	mu    sync.Mutex
	ctrls map[string]*Controller
}

func NewRegistry(repo Repository, opts Options) *Registry {
	return &Registry{repo: repo, opts: opts, ctrls: map[string]*Controller{}}
}

// For returns the loaded Controller for scope.
func (r *Registry) For(ctx context.Context, scope string) (*Controller, error) {
	scope = strings.TrimSpace(scope)

	r.mu.Lock()
	c, ok := r.ctrls[scope]
	r.mu.Unlock()
	if ok {
		return c, nil
	}

	c = NewController(scope, r.repo, r.opts)
	if err := c.Load(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.ctrls[scope]; ok {
		// Lost the race; c has no edits yet.
		return cur, nil
	}
	r.ctrls[scope] = c
	return c, nil
}

// Invalidate reloads the controller holding documentID. Unknown ids are ignored.
func (r *Registry) Invalidate(ctx context.Context, documentID string) error {
	for _, c := range r.controllers() {
		if c.Snapshot().DocumentID == documentID {
			return c.Invalidate(ctx)
		}
	}
	return nil
}

// Close flushes and closes every controller.
func (r *Registry) Close(ctx context.Context) error {
	var errs []error
	for _, c := range r.controllers() {
		if err := c.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) controllers() []*Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Controller, 0, len(r.ctrls))
	for _, c := range r.ctrls {
		out = append(out, c)
	}
	return out
}
