package store

import (
	"context"
	"time"

	"call-console/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const leasePrefix = "console:active:"

// RedisLease holds "operator has an active call" across API processes. The call id
// is the owner token; the TTL frees the key if a process dies mid-call.
type RedisLease struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisLease(rdb redis.UniversalClient, ttl time.Duration) *RedisLease {
	return &RedisLease{rdb: rdb, ttl: ttl}
}

func LeaseKey(operatorID string) string { return leasePrefix + operatorID }

func (l *RedisLease) Acquire(ctx context.Context, operatorID, callID string) (bool, error) {
	return utils.AcquireLease(ctx, l.rdb, LeaseKey(operatorID), callID, l.ttl)
}

func (l *RedisLease) Release(ctx context.Context, operatorID, callID string) error {
	return utils.ReleaseLease(ctx, l.rdb, LeaseKey(operatorID), callID)
}

// Holder returns the call id holding the operator's lease, or "".
func (l *RedisLease) Holder(ctx context.Context, operatorID string) (string, error) {
	return utils.LeaseHolder(ctx, l.rdb, LeaseKey(operatorID))
}
