package scripts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	byScope map[string]string
	docs    map[string]Document
	writes  []Document
	err     error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byScope: map[string]string{}, docs: map[string]Document{}}
}

// FailWith makes every following call return err until cleared with nil.
func (r *MemoryRepo) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *MemoryRepo) LoadDocument(ctx context.Context, scope string) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Document{}, r.err
	}
	if id, ok := r.byScope[scope]; ok {
		return r.docs[id], nil
	}
	d := Document{ID: uuid.NewString(), Scope: scope, UpdatedAt: time.Now().UTC()}
	r.byScope[scope] = d.ID
	r.docs[d.ID] = d
	return d, nil
}

func (r *MemoryRepo) UpdateDocument(ctx context.Context, id, scriptText, aiPromptText string, at time.Time) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Document{}, r.err
	}
	d, ok := r.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	d.ScriptText = scriptText
	d.AIPromptText = aiPromptText
	d.UpdatedAt = at
	d.Revision++
	r.docs[id] = d
	r.writes = append(r.writes, d)
	return d, nil
}

// Writes returns every successful UpdateDocument result in order.
func (r *MemoryRepo) Writes() []Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Document, len(r.writes))
	copy(out, r.writes)
	return out
}
