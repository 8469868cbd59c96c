package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"call-console/internal/auth"
	"call-console/pkg/logger"

	"github.com/google/uuid"
)

// Appender is the write side of the audit store.
//
// It MUST be append-only.
// There are no Update or Delete methods.
type Appender interface {
	Append(ctx context.Context, e Event) error
}

// Querier is the read side of the audit store. Results are ordered by CreatedAt
// descending.
type Querier interface {
	Query(ctx context.Context, f LogFilter, opts QueryOptions) ([]Event, error)
}

// Repository is the persistence contract for audit events.
type Repository interface {
	Appender
	Querier
}

// EventLogger is the fire-and-forget surface used by business components.
type EventLogger interface {
	LogEvent(ctx context.Context, e Entry)
}

var (
	ErrInvalidEvent = errors.New("audit: invalid event")
	ErrClosed       = errors.New("audit: logger closed")
)

type Options struct {
	// QueueSize bounds the number of events waiting for the store. Overflow is dropped.
	QueueSize int

	// Enricher fills IP when neither the entry nor the request context carry one.
	Enricher      Enricher
	EnrichTimeout time.Duration

	// WriteTimeout bounds a single append.
	WriteTimeout time.Duration

	Log   *slog.Logger
	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.EnrichTimeout <= 0 {
		o.EnrichTimeout = 1500 * time.Millisecond
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	o.Log = logger.Component(o.Log, "audit")
	return o
}

// Logger appends audit events through a single background writer.
//
// LogEvent never fails the caller: store errors, full queues and invalid entries are
// reported to the slog sink only. Events reach the store in LogEvent call order.
type Logger struct {
	repo Appender
	opts Options

	queue chan item
	wg    sync.WaitGroup

	stampMu sync.Mutex
	last    time.Time

	closeMu sync.RWMutex
	closed  bool
}

type item struct {
	ctx     context.Context
	ev      Event
	barrier chan struct{}
}

// NewLogger starts the writer goroutine. Call Close to drain and stop it.
func NewLogger(repo Appender, opts Options) *Logger {
	opts = opts.withDefaults()
	l := &Logger{
		repo:  repo,
		opts:  opts,
		queue: make(chan item, opts.QueueSize),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// LogEvent stamps e and hands it to the writer.
func (l *Logger) LogEvent(ctx context.Context, e Entry) {
	ev, err := l.build(ctx, e)
	if err != nil {
		l.opts.Log.Error("audit event rejected", "type", e.Type, "status", e.Status, "err", err)
		return
	}

	l.closeMu.RLock()
	defer l.closeMu.RUnlock()
	if l.closed {
		l.opts.Log.Error("audit event dropped", "type", ev.Type, "err", ErrClosed)
		return
	}

	// Stamp and enqueue together so the writer sees events in stamp order.
	l.stampMu.Lock()
	defer l.stampMu.Unlock()
	ev.CreatedAt = l.stampLocked()
	select {
	case l.queue <- item{ctx: context.WithoutCancel(ctx), ev: ev}:
	default:
		l.opts.Log.Error("audit event dropped", "type", ev.Type, "reason", "queue full")
	}
}

// Append validates and writes e synchronously, bypassing the queue.
func (l *Logger) Append(ctx context.Context, e Event) error {
	if err := validate(e); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.stamp()
	}
	return l.write(ctx, e)
}

// Flush blocks until every event queued before the call has been written or dropped.
func (l *Logger) Flush(ctx context.Context) error {
	done := make(chan struct{})

	l.closeMu.RLock()
	if l.closed {
		l.closeMu.RUnlock()
		return ErrClosed
	}
	select {
	case l.queue <- item{barrier: done}:
	case <-ctx.Done():
		l.closeMu.RUnlock()
		return ctx.Err()
	}
	l.closeMu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue and stops the writer. Later LogEvent calls are dropped.
func (l *Logger) Close() {
	l.closeMu.Lock()
	if l.closed {
		l.closeMu.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	l.closeMu.Unlock()
	l.wg.Wait()
}

func (l *Logger) run() {
	defer l.wg.Done()
	for it := range l.queue {
		if it.barrier != nil {
			close(it.barrier)
			continue
		}
		ev := it.ev
		if ev.IP == "" && l.opts.Enricher != nil {
			ev.IP = l.enrich(it.ctx)
		}
		if err := l.write(it.ctx, ev); err != nil {
			l.opts.Log.Error("audit append failed", "type", ev.Type, "status", ev.Status, "id", ev.ID, "err", err)
		}
	}
}

func (l *Logger) write(ctx context.Context, ev Event) error {
	if l.repo == nil {
		return errors.New("audit: repository not configured")
	}
	wctx, cancel := context.WithTimeout(ctx, l.opts.WriteTimeout)
	defer cancel()
	return l.repo.Append(wctx, ev)
}

func (l *Logger) enrich(ctx context.Context) string {
	ectx, cancel := context.WithTimeout(ctx, l.opts.EnrichTimeout)
	defer cancel()
	ip, err := l.opts.Enricher.LookupIP(ectx)
	if err != nil {
		l.opts.Log.Debug("ip enrichment skipped", "err", err)
		return ""
	}
	return ip
}

func (l *Logger) build(ctx context.Context, e Entry) (Event, error) {
	ev := Event{
		ID:          uuid.NewString(),
		Type:        e.Type,
		Status:      e.Status,
		Message:     e.Message,
		ActorRef:    e.Actor,
		IP:          e.IP,
		Device:      e.Device,
		Region:      e.Region,
		ExternalRef: e.ExternalRef,
	}
	if err := validate(ev); err != nil {
		return Event{}, err
	}

	if e.Data != nil {
		raw, err := json.Marshal(e.Data)
		if err != nil {
			raw, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
		}
		ev.Data = raw
	}

	client := ClientFrom(ctx)
	if ev.IP == "" {
		ev.IP = client.IP
	}
	if ev.Device == "" {
		ev.Device = client.Device
	}
	if ev.Region == "" {
		ev.Region = client.Region
	}
	if ev.ActorRef == "" {
		if s, err := auth.SessionFrom(ctx); err == nil {
			ev.ActorRef = s.OperatorID
		}
	}

	return ev, nil
}

// stamp returns the clock reading, never earlier than the previous stamp.
func (l *Logger) stamp() time.Time {
	l.stampMu.Lock()
	defer l.stampMu.Unlock()
	return l.stampLocked()
}

func (l *Logger) stampLocked() time.Time {
	now := l.opts.Clock().UTC()
	if now.Before(l.last) {
		now = l.last
	}
	l.last = now
	return now
}

func validate(e Event) error {
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if !e.Status.Valid() {
		return ErrInvalidEvent
	}
	return nil
}
