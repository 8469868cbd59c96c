package scripts

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"call-console/internal/apperr"
	"call-console/internal/audit"
	"call-console/pkg/logger"
)

const DefaultDebounce = 2 * time.Second

var ErrClosed = errors.New("scripts: controller closed")

// Timer is the part of *time.Timer the controller uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Tests replace it with a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type Options struct {
	Debounce  time.Duration
	Events    audit.EventLogger
	Log       *slog.Logger
	Clock     func() time.Time
	AfterFunc AfterFunc
}

// Controller buffers edits to one Document and writes them back with a debounce.
//
// Every edit restarts a single timer; when it fires the then-current texts are
// persisted once. Save persists immediately. Persists never overlap and run in the
// order they were triggered. Failed persists are not retried; the next edit or Save
// tries again with the then-current texts.
type Controller struct {
	scope string
	repo  Repository
	opts  Options
	log   *slog.Logger

	// persistMu serializes writes to the store.
	persistMu sync.Mutex

	mu          sync.Mutex
	doc         Document
	loaded      bool
	script      string
	prompt      string
	scriptSet   bool
	promptSet   bool
	dirty       bool
	timer       Timer
	gen         uint64
	deferred    bool
	editCtx     context.Context
	lastErr     error
	lastSavedAt *time.Time
	closed      bool
}

func NewController(scope string, repo Repository, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	return &Controller{
		scope:   scope,
		repo:    repo,
		opts:    opts,
		log:     logger.Component(opts.Log, "scripts").With("scope", scope),
		editCtx: context.Background(),
	}
}

// Load resolves the document. Edits made before Load are kept on top of the stored
// texts. If the debounce already fired, the deferred persist runs before Load returns.
func (c *Controller) Load(ctx context.Context) error {
	d, err := c.repo.LoadDocument(ctx, c.scope)
	if err != nil {
		return apperr.Store("load script document", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.doc = d
	c.loaded = true
	if !c.scriptSet {
		c.script = d.ScriptText
	}
	if !c.promptSet {
		c.prompt = d.AIPromptText
	}
	run := c.deferred
	c.deferred = false
	c.mu.Unlock()

	if run {
		_ = c.persist(context.Background(), false)
	}
	return nil
}

func (c *Controller) OnScriptChanged(ctx context.Context, text string) {
	c.edit(ctx, func() {
		c.script = text
		c.scriptSet = true
	})
}

func (c *Controller) OnPromptChanged(ctx context.Context, text string) {
	c.edit(ctx, func() {
		c.prompt = text
		c.promptSet = true
	})
}

func (c *Controller) edit(ctx context.Context, apply func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	apply()
	c.dirty = true
	c.editCtx = context.WithoutCancel(ctx)
	c.stopTimerLocked()
	g := c.gen
	c.timer = c.opts.AfterFunc(c.opts.Debounce, func() { c.fire(g) })
}

// Save cancels the pending debounce and persists the current texts now.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.stopTimerLocked()
	c.deferred = false
	loaded := c.loaded
	c.mu.Unlock()

	if !loaded {
		if err := c.Load(ctx); err != nil {
			return err
		}
	}
	return c.persist(ctx, true)
}

// Invalidate reloads the document after a remote change. Unsaved local edits win
// and are left untouched.
func (c *Controller) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	if !c.loaded || c.dirty || c.timer != nil || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	d, err := c.repo.LoadDocument(ctx, c.scope)
	if err != nil {
		return apperr.Store("reload script document", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dirty || c.timer != nil || d.Revision <= c.doc.Revision {
		return nil
	}
	c.doc = d
	c.script = d.ScriptText
	c.prompt = d.AIPromptText
	c.log.Debug("script document reloaded", "revision", d.Revision)
	return nil
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		DocumentID:   c.doc.ID,
		Scope:        c.scope,
		ScriptText:   c.script,
		AIPromptText: c.prompt,
		Revision:     c.doc.Revision,
		UpdatedAt:    c.doc.UpdatedAt,
		Loaded:       c.loaded,
		Dirty:        c.dirty,
		SavePending:  c.timer != nil || c.deferred,
		LastSavedAt:  c.lastSavedAt,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// LastError returns the AutosaveError of the latest failed persist, if the
// following persists have not succeeded yet.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close stops the debounce and writes unsaved edits once.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.stopTimerLocked()
	c.closed = true
	flush := c.loaded && c.dirty
	c.mu.Unlock()

	if !flush {
		return nil
	}
	return c.persist(ctx, false)
}

func (c *Controller) fire(g uint64) {
	c.mu.Lock()
	if g != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if !c.loaded {
		c.deferred = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	_ = c.persist(context.Background(), false)
}

// persist writes the current texts. Background persists skip when nothing changed
// since the previous write, which happens when a Save overtook the timer.
func (c *Controller) persist(ctx context.Context, manual bool) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	if !manual && !c.dirty {
		c.mu.Unlock()
		return nil
	}
	id, script, prompt := c.doc.ID, c.script, c.prompt
	eventCtx := c.editCtx
	if manual {
		eventCtx = ctx
	}
	c.dirty = false
	c.mu.Unlock()

	now := c.opts.Clock().UTC()
	d, err := c.repo.UpdateDocument(ctx, id, script, prompt, now)
	if err != nil {
		aerr := &apperr.AutosaveError{DocumentID: id, Err: err}
		c.mu.Lock()
		c.dirty = true
		c.lastErr = aerr
		c.mu.Unlock()

		c.log.Warn("script persist failed", "document_id", id, "manual", manual, "err", err)
		c.emit(eventCtx, audit.Entry{
			Type:    audit.EventTypeScriptUpdate,
			Status:  audit.StatusError,
			Message: "script update failed",
			Data:    map[string]string{"error": err.Error()},
		})
		return aerr
	}

	c.mu.Lock()
	if d.Revision >= c.doc.Revision {
		c.doc = d
	}
	c.lastErr = nil
	c.lastSavedAt = &now
	c.mu.Unlock()

	c.emit(eventCtx, audit.Entry{
		Type:    audit.EventTypeScriptUpdate,
		Status:  audit.StatusSuccess,
		Message: "script updated",
		Data:    map[string]string{"script": script, "ai_prompt": prompt},
	})
	return nil
}

func (c *Controller) emit(ctx context.Context, e audit.Entry) {
	if c.opts.Events == nil {
		return
	}
	c.opts.Events.LogEvent(ctx, e)
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}
