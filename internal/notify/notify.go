package notify

import (
	"context"
	"strings"
	"time"
)

// Tables that publish change notifications.
const (
	TableCallSessions = "call_sessions"
	TableCallScripts  = "call_scripts"
	TableLogs         = "logs"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// ChangeNotification announces a committed write. It carries no row data;
// consumers reload what they need.
type ChangeNotification struct {
	Table string    `json:"table"`
	Op    Op        `json:"op"`
	ID    string    `json:"id"`
	At    time.Time `json:"at"`
}

// Notifier publishes and subscribes to change notifications per table.
// Delivery is best-effort.
type Notifier interface {
	Publish(ctx context.Context, n ChangeNotification) error
	// Subscribe streams notifications for table until ctx is done or the returned
	// cancel func is called. The channel is closed afterwards.
	Subscribe(ctx context.Context, table string) (<-chan ChangeNotification, func(), error)
}

func normalizeTable(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
