package utils

import (
	"context"
	"testing"
	"time"
)

func TestLeaseScriptsInitialized(t *testing.T) {
	if leaseAcquireScript == nil || leaseReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestRedisConfig_Defaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if c.PoolSize != 20 || c.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestAcquireLease_RejectsInvalidArgs(t *testing.T) {
	ctx := context.Background()
	if _, err := AcquireLease(ctx, nil, "k", "o", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := ReleaseLease(ctx, nil, "k", "o"); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := LeaseHolder(ctx, nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
