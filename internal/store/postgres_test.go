package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"call-console/internal/apperr"
	"call-console/internal/audit"
	"call-console/internal/auth"
	"call-console/internal/calls"
	"call-console/internal/notify"
	"call-console/pkg/utils"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// openTestDB connects to CONSOLE_TEST_DATABASE_URL or skips.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("CONSOLE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CONSOLE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := utils.OpenPostgres(ctx, "pgx", dsn, utils.PostgresPoolConfig{MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedRefs(t *testing.T, db *sql.DB, operatorID, clientID, campaignID string) {
	t.Helper()
	ctx := context.Background()
	stmts := []struct {
		q  string
		id string
	}{
		{`INSERT INTO operators (id, role) VALUES ($1, 'agent') ON CONFLICT DO NOTHING`, operatorID},
		{`INSERT INTO clients (id) VALUES ($1) ON CONFLICT DO NOTHING`, clientID},
		{`INSERT INTO campaigns (id) VALUES ($1) ON CONFLICT DO NOTHING`, campaignID},
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s.q, s.id); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestPostgres_SessionLifecycle(t *testing.T) {
	db := openTestDB(t)
	bus := notify.NewMemoryNotifier()
	p := NewPostgres(db, WithNotifier(bus))
	ctx := context.Background()

	op, client, campaign := "op-"+uuid.NewString(), "c-"+uuid.NewString(), "p-"+uuid.NewString()
	seedRefs(t, db, op, client, campaign)

	changes, stop, err := bus.Subscribe(ctx, notify.TableCallSessions)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stop()

	s := calls.CallSession{
		ID: uuid.NewString(), OperatorID: op, ClientID: client, CampaignID: campaign,
		Status: calls.StatusActive, Notes: "call started from console", StartedAt: time.Now().UTC(),
	}
	if err := p.CreateSession(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}
	if n := <-changes; n.ID != s.ID || n.Op != notify.OpInsert {
		t.Fatalf("unexpected notification %+v", n)
	}

	second := s
	second.ID = uuid.NewString()
	if err := p.CreateSession(ctx, second); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error from unique index, got %v", err)
	}

	active, err := p.ActiveSession(ctx, op)
	if err != nil || active.ID != s.ID {
		t.Fatalf("active session: %+v %v", active, err)
	}

	done, err := p.UpdateSession(ctx, s.ID, calls.SessionPatch{Status: calls.StatusCompleted, EndedAt: time.Now().UTC(), Notes: "done"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if done.Status != calls.StatusCompleted || done.EndedAt == nil {
		t.Fatalf("unexpected row %+v", done)
	}
	if _, err := p.UpdateSession(ctx, s.ID, calls.SessionPatch{Status: calls.StatusMissed, EndedAt: time.Now()}); !errors.Is(err, calls.ErrNotFound) {
		t.Fatalf("terminal session must not be updated again, got %v", err)
	}
	if _, err := p.ActiveSession(ctx, op); !errors.Is(err, calls.ErrNotFound) {
		t.Fatalf("expected no active session, got %v", err)
	}
}

func TestPostgres_DocumentsAndLogs(t *testing.T) {
	db := openTestDB(t)
	p := NewPostgres(db)
	ctx := context.Background()

	scope := "p-" + uuid.NewString()
	d1, err := p.LoadDocument(ctx, scope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	d2, err := p.LoadDocument(ctx, scope)
	if err != nil || d2.ID != d1.ID {
		t.Fatalf("load must be idempotent: %v", err)
	}
	up, err := p.UpdateDocument(ctx, d1.ID, "hello", "prompt", time.Now().UTC())
	if err != nil || up.Revision != d1.Revision+1 || up.ScriptText != "hello" {
		t.Fatalf("update: %+v %v", up, err)
	}

	marker := uuid.NewString()
	now := time.Now().UTC()
	for i, st := range []audit.Status{audit.StatusInfo, audit.StatusError} {
		e := audit.Event{
			ID: uuid.NewString(), Type: audit.EventTypeCallInit, Status: st,
			Message: marker, Data: []byte(`{"n":1}`), CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		}
		if err := p.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	rows, err := p.Query(ctx, audit.LogFilter{Search: marker, Status: audit.StatusError}, audit.QueryOptions{Limit: 10})
	if err != nil || len(rows) != 1 || rows[0].Status != audit.StatusError {
		t.Fatalf("query: %+v %v", rows, err)
	}
}

func TestPostgres_EnsureOperatorIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	p := NewPostgres(db)
	ctx := context.Background()

	id := "op-" + uuid.NewString()
	now := time.Now().UTC()
	s := auth.Session{OperatorID: id, Email: "a@example.com", Role: "admin"}
	first, err := auth.Provision(ctx, p, s, now)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	s.Role = "agent"
	again, err := auth.Provision(ctx, p, s, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("provision again: %v", err)
	}
	if again.Role != first.Role {
		t.Fatalf("existing role must be kept, got %q", again.Role)
	}
	got, err := p.GetOperator(ctx, id)
	if err != nil {
		t.Fatalf("get operator: %v", err)
	}
	if got.Role != "admin" || got.LastLoginAt == nil {
		t.Fatalf("unexpected operator: %+v", got)
	}
	if _, err := p.GetOperator(ctx, "missing-"+id); !errors.Is(err, auth.ErrOperatorNotFound) {
		t.Fatalf("expected ErrOperatorNotFound, got %v", err)
	}
}
