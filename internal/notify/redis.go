package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"call-console/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "console:changes:"

// Channel returns the pub/sub channel of table.
func Channel(table string) string { return channelPrefix + normalizeTable(table) }

// RedisNotifier fans notifications out across API processes over redis pub/sub.
type RedisNotifier struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisNotifier(rdb *redis.Client, log *slog.Logger) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, log: logger.Component(log, "notify")}
}

func (r *RedisNotifier) Publish(ctx context.Context, n ChangeNotification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, Channel(n.Table), b).Err(); err != nil {
		return fmt.Errorf("notify publish %s: %w", n.Table, err)
	}
	return nil
}

func (r *RedisNotifier) Subscribe(ctx context.Context, table string) (<-chan ChangeNotification, func(), error) {
	ps := r.rdb.Subscribe(ctx, Channel(table))
	// Receive the subscription confirmation so errors surface here.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("notify subscribe %s: %w", table, err)
	}

	out := make(chan ChangeNotification, defaultSubscriberCapacity)
	sctx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-sctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var n ChangeNotification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					r.log.Warn("bad change notification", "channel", msg.Channel, "err", err)
					continue
				}
				select {
				case out <- n:
				default:
					r.log.Warn("change notification dropped", "table", n.Table, "id", n.ID)
				}
			}
		}
	}()
	return out, cancel, nil
}
