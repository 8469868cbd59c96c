package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"call-console/pkg/logger"
)

// Handler reacts to one notification. Errors are logged.
type Handler func(ctx context.Context, n ChangeNotification) error

// Dispatcher holds one subscription per table and fans notifications out to the
// handlers registered for it.
type Dispatcher struct {
	src Notifier
	log *slog.Logger

	mu       sync.Mutex
	handlers map[string][]Handler
}

func NewDispatcher(src Notifier, log *slog.Logger) *Dispatcher {
	return &Dispatcher{src: src, log: logger.Component(log, "notify"), handlers: map[string][]Handler{}}
}

// Handle registers h for table. Call before Run.
func (d *Dispatcher) Handle(table string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	table = normalizeTable(table)
	d.handlers[table] = append(d.handlers[table], h)
}

// Run subscribes to every registered table and dispatches until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	tables := make(map[string][]Handler, len(d.handlers))
	for t, hs := range d.handlers {
		tables[t] = append([]Handler(nil), hs...)
	}
	d.mu.Unlock()
	if len(tables) == 0 {
		<-ctx.Done()
		return nil
	}

	var wg sync.WaitGroup
	var errs []error
	for table, hs := range tables {
		ch, cancel, err := d.src.Subscribe(ctx, table)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		wg.Add(1)
		go func(table string, ch <-chan ChangeNotification, hs []Handler) {
			defer wg.Done()
			defer cancel()
			for n := range ch {
				for _, h := range hs {
					if err := h(ctx, n); err != nil {
						d.log.Warn("change handler failed", "table", table, "id", n.ID, "err", err)
					}
				}
			}
		}(table, ch, hs)
	}
	if len(errs) > 0 && len(errs) == len(tables) {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		d.log.Error("change subscription failed", "err", err)
	}
	wg.Wait()
	return nil
}
