package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"call-console/internal/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMemoryStore(t *testing.T, events ...audit.Event) {
	t.Helper()
	repo := audit.NewMemoryRepo()
	for _, e := range events {
		require.NoError(t, repo.Append(context.Background(), e))
	}
	prev := openQuerier
	openQuerier = func(ctx context.Context, dsn string) (audit.Querier, func() error, error) {
		return repo, func() error { return nil }, nil
	}
	t.Cleanup(func() { openQuerier = prev })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExport_JSONNewestFirst(t *testing.T) {
	now := time.Now().UTC()
	withMemoryStore(t,
		audit.Event{ID: "a", Type: audit.EventTypeLogin, Status: audit.StatusSuccess, CreatedAt: now.Add(-2 * time.Minute)},
		audit.Event{ID: "b", Type: audit.EventTypeCallInit, Status: audit.StatusSuccess, CreatedAt: now.Add(-time.Minute)},
	)

	out, err := execute(t, "export", "--dsn", "postgres://test")
	require.NoError(t, err)

	var got []audit.Event
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}

func TestExport_CSVWithTypeFilter(t *testing.T) {
	now := time.Now().UTC()
	withMemoryStore(t,
		audit.Event{ID: "a", Type: audit.EventTypeLogin, Status: audit.StatusSuccess, CreatedAt: now},
		audit.Event{ID: "b", Type: audit.EventTypeCallInit, Status: audit.StatusError, CreatedAt: now},
	)

	out, err := execute(t, "export", "--dsn", "postgres://test", "--format", "csv", "--type", "call_init")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `"id","type","status"`))
	assert.True(t, strings.HasPrefix(lines[1], `"b","call_init","error"`))
}

func TestExport_SinceExcludesOlderEvents(t *testing.T) {
	now := time.Now().UTC()
	withMemoryStore(t,
		audit.Event{ID: "old", Type: audit.EventTypeLogin, Status: audit.StatusInfo, CreatedAt: now.Add(-48 * time.Hour)},
		audit.Event{ID: "new", Type: audit.EventTypeLogin, Status: audit.StatusInfo, CreatedAt: now},
	)

	out, err := execute(t, "export", "--dsn", "postgres://test", "--since", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, `"new"`)
	assert.NotContains(t, out, `"old"`)
}

func TestExport_RejectsBadInput(t *testing.T) {
	withMemoryStore(t)

	_, err := execute(t, "export", "--dsn", "postgres://test", "--format", "xml")
	require.Error(t, err)

	_, err = execute(t, "export", "--dsn", "")
	require.Error(t, err)

	_, err = execute(t, "export", "--dsn", "postgres://test", "--status", "fatal")
	require.Error(t, err)
}
