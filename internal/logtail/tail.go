package logtail

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"call-console/internal/apperr"
	"call-console/internal/audit"
	"call-console/pkg/logger"

	"golang.org/x/sync/semaphore"
)

const (
	DefaultLimit    = 200
	DefaultInterval = 5 * time.Second
)

type Options struct {
	// Limit caps the visible list.
	Limit int
	Log   *slog.Logger
}

// PollResult describes one Poll call.
type PollResult struct {
	// Skipped is set when another poll was still in flight or nothing is loaded yet.
	Skipped bool `json:"skipped"`
	// Stale is set when a Load replaced the filter while the poll ran; its rows were dropped.
	Stale bool `json:"stale"`
	// New counts events added to pending by this poll.
	New int `json:"new"`
}

// Tail is the audit log view of one operator.
//
// Load replaces the visible list. Poll fetches events newer than the cursor into
// pending without touching visible; Merge moves pending into visible. An event id
// appears at most once across visible and pending.
type Tail struct {
	q     audit.Querier
	limit int
	log   *slog.Logger

	inflight *semaphore.Weighted
	updates  chan struct{}
	kick     chan struct{}

	mu      sync.Mutex
	loaded  bool
	gen     uint64
	filter  audit.LogFilter
	cursor  *time.Time
	visible []audit.Event
	pending []audit.Event
	lastErr error
}

func New(q audit.Querier, opts Options) *Tail {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	return &Tail{
		q:        q,
		limit:    opts.Limit,
		log:      logger.Component(opts.Log, "logtail"),
		inflight: semaphore.NewWeighted(1),
		updates:  make(chan struct{}, 1),
		kick:     make(chan struct{}, 1),
		visible:  []audit.Event{},
	}
}

// Load resets the view to the newest events matching f. On a query failure the
// previous view is kept and a PollError is returned. When Loads overlap, the one
// started last wins; earlier results are dropped.
func (t *Tail) Load(ctx context.Context, f audit.LogFilter) error {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	rows, err := t.q.Query(ctx, f, audit.QueryOptions{Limit: t.limit})
	if err != nil {
		perr := &apperr.PollError{Err: err}
		t.mu.Lock()
		if gen == t.gen {
			t.lastErr = perr
		}
		t.mu.Unlock()
		return perr
	}
	rows = dedupe(rows, nil)
	sortDesc(rows)
	if len(rows) > t.limit {
		rows = rows[:t.limit]
	}

	t.mu.Lock()
	if gen != t.gen {
		// A later Load owns the view.
		t.mu.Unlock()
		return nil
	}
	t.gen++
	t.loaded = true
	t.filter = f
	t.visible = rows
	t.pending = nil
	t.cursor = maxCreatedAt(nil, rows)
	t.lastErr = nil
	t.mu.Unlock()
	return nil
}

// Poll fetches events newer than the cursor into pending. At most one poll runs at
// a time; concurrent calls return Skipped.
func (t *Tail) Poll(ctx context.Context) (PollResult, error) {
	if !t.inflight.TryAcquire(1) {
		return PollResult{Skipped: true}, nil
	}
	defer t.inflight.Release(1)

	t.mu.Lock()
	if !t.loaded {
		t.mu.Unlock()
		return PollResult{Skipped: true}, nil
	}
	gen, f := t.gen, t.filter
	var after *time.Time
	if t.cursor != nil {
		c := *t.cursor
		after = &c
	}
	t.mu.Unlock()

	rows, err := t.q.Query(ctx, f, audit.QueryOptions{After: after, Limit: t.limit})

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return PollResult{Stale: true}, nil
	}
	if err != nil {
		t.lastErr = &apperr.PollError{Err: err}
		return PollResult{}, t.lastErr
	}
	t.lastErr = nil

	seen := make(map[string]struct{}, len(t.visible)+len(t.pending))
	for _, e := range t.visible {
		seen[e.ID] = struct{}{}
	}
	for _, e := range t.pending {
		seen[e.ID] = struct{}{}
	}
	fresh := dedupe(rows, seen)
	if len(fresh) == 0 {
		return PollResult{}, nil
	}
	t.pending = append(t.pending, fresh...)
	sortDesc(t.pending)
	t.signal()
	return PollResult{New: len(fresh)}, nil
}

// Merge prepends pending to visible, truncates to the limit and advances the cursor.
// It returns the number of events merged.
func (t *Tail) Merge() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.pending)
	if n == 0 {
		return 0
	}
	t.cursor = maxCreatedAt(t.cursor, t.pending)
	merged := make([]audit.Event, 0, n+len(t.visible))
	merged = append(merged, t.pending...)
	merged = append(merged, t.visible...)
	sortDesc(merged)
	if len(merged) > t.limit {
		merged = merged[:t.limit]
	}
	t.visible = merged
	t.pending = nil
	return n
}

func (t *Tail) Visible() []audit.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]audit.Event{}, t.visible...)
}

func (t *Tail) Pending() []audit.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]audit.Event{}, t.pending...)
}

// Cursor is the createdAt of the newest merged event, nil before any.
func (t *Tail) Cursor() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cursor == nil {
		return nil
	}
	c := *t.cursor
	return &c
}

func (t *Tail) Filter() audit.LogFilter {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filter
}

// LastError is the PollError of the latest failed query, cleared by the next success.
func (t *Tail) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Updates receives a value whenever a poll adds pending events.
func (t *Tail) Updates() <-chan struct{} { return t.updates }

// Kick asks a running Run loop to poll now.
func (t *Tail) Kick() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// Run polls every interval, and on Kick, until ctx is done. Each poll runs in its
// own goroutine so a slow query makes the following ticks skip instead of queueing.
func (t *Tail) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-t.kick:
		}
		go func() {
			if _, err := t.Poll(ctx); err != nil && ctx.Err() == nil {
				t.log.Warn("log poll failed", "err", err)
			}
		}()
	}
}

func (t *Tail) signal() {
	select {
	case t.updates <- struct{}{}:
	default:
	}
}

// dedupe drops rows whose id is in seen or repeated, recording kept ids in seen.
func dedupe(rows []audit.Event, seen map[string]struct{}) []audit.Event {
	if seen == nil {
		seen = make(map[string]struct{}, len(rows))
	}
	out := make([]audit.Event, 0, len(rows))
	for _, e := range rows {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

func sortDesc(rows []audit.Event) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
}

func maxCreatedAt(cur *time.Time, rows []audit.Event) *time.Time {
	var out *time.Time
	if cur != nil {
		c := *cur
		out = &c
	}
	for _, e := range rows {
		if out == nil || e.CreatedAt.After(*out) {
			c := e.CreatedAt
			out = &c
		}
	}
	return out
}
