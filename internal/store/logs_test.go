package store

import (
	"strings"
	"testing"
	"time"

	"call-console/internal/audit"
)

func TestBuildLogQuery_NoFilter(t *testing.T) {
	q, args := buildLogQuery(audit.LogFilter{}, audit.QueryOptions{})
	if strings.Contains(q, "WHERE") || len(args) != 0 {
		t.Fatalf("expected unfiltered query, got %q %v", q, args)
	}
	if !strings.HasSuffix(q, "ORDER BY created_at DESC, id DESC") {
		t.Fatalf("expected newest first, got %q", q)
	}
}

func TestBuildLogQuery_AllClauses(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	after := from.Add(time.Hour)
	f := audit.LogFilter{From: from, To: to, Type: audit.EventTypeCallInit, Status: audit.StatusError, Search: "50%_off"}

	q, args := buildLogQuery(f, audit.QueryOptions{After: &after, Limit: 200})

	for _, want := range []string{
		"created_at >= $1",
		"created_at <= $2",
		"created_at > $3",
		"type = $4",
		"status = $5",
		"message ILIKE $6 OR type ILIKE $6",
		"LIMIT $7",
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("expected %q in %q", want, q)
		}
	}
	if len(args) != 7 {
		t.Fatalf("expected 7 args, got %d", len(args))
	}
	if args[5] != `%50\%\_off%` {
		t.Fatalf("expected escaped search, got %v", args[5])
	}
	if args[6] != 200 {
		t.Fatalf("expected limit arg, got %v", args[6])
	}
}

func TestSchema_DeclaresActiveSessionIndex(t *testing.T) {
	if !strings.Contains(schemaSQL, activeSessionIndex) {
		t.Fatalf("schema must declare %s", activeSessionIndex)
	}
	for _, table := range []string{"operators", "clients", "campaigns", "call_sessions", "call_scripts", "logs"} {
		if !strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("schema missing table %s", table)
		}
	}
}

func TestLeaseKey(t *testing.T) {
	if got := LeaseKey("op-1"); got != "console:active:op-1" {
		t.Fatalf("unexpected key %q", got)
	}
}
