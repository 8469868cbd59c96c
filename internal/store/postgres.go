package store

import (
	"context"
	"database/sql"
	_ "embed"
	"log/slog"
	"time"

	"call-console/internal/notify"
	"call-console/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

// Postgres is the console record store. It implements the repository ports of
// calls, scripts, audit and reporting plus auth.Provisioner.
//
// Writes publish a notify.ChangeNotification after commit when a Notifier is set.
type Postgres struct {
	db       *sql.DB
	notifier notify.Notifier
	log      *slog.Logger
	clock    func() time.Time
}

type Option func(*Postgres)

func WithNotifier(n notify.Notifier) Option { return func(p *Postgres) { p.notifier = n } }

func WithLogger(l *slog.Logger) Option {
	return func(p *Postgres) { p.log = logger.Component(l, "store") }
}

func NewPostgres(db *sql.DB, opts ...Option) *Postgres {
	p := &Postgres{db: db, log: logger.Component(nil, "store"), clock: time.Now}
	for _, o := range opts {
		if o != nil {
			o(p)
		}
	}
	return p
}

func (p *Postgres) publish(ctx context.Context, table string, op notify.Op, id string) {
	if p.notifier == nil {
		return
	}
	n := notify.ChangeNotification{Table: table, Op: op, ID: id, At: p.clock().UTC()}
	if err := p.notifier.Publish(context.WithoutCancel(ctx), n); err != nil {
		p.log.Warn("change notification not published", "table", table, "id", id, "err", err)
	}
}
