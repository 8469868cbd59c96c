package notify

import (
	"context"
	"sync"
)

const defaultSubscriberCapacity = 64

// MemoryNotifier delivers in process. A subscriber whose buffer is full misses
// the notification.
type MemoryNotifier struct {
	mu   sync.RWMutex
	subs map[string]map[*memSub]struct{}
}

type memSub struct {
	ch   chan ChangeNotification
	once sync.Once
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{subs: map[string]map[*memSub]struct{}{}}
}

func (m *MemoryNotifier) Publish(ctx context.Context, n ChangeNotification) error {
	table := normalizeTable(n.Table)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for s := range m.subs[table] {
		select {
		case s.ch <- n:
		default:
		}
	}
	return nil
}

func (m *MemoryNotifier) Subscribe(ctx context.Context, table string) (<-chan ChangeNotification, func(), error) {
	table = normalizeTable(table)
	s := &memSub{ch: make(chan ChangeNotification, defaultSubscriberCapacity)}

	m.mu.Lock()
	if m.subs[table] == nil {
		m.subs[table] = map[*memSub]struct{}{}
	}
	m.subs[table][s] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		s.once.Do(func() {
			m.mu.Lock()
			delete(m.subs[table], s)
			if len(m.subs[table]) == 0 {
				delete(m.subs, table)
			}
			close(s.ch)
			m.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return s.ch, cancel, nil
}
