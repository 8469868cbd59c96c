package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"call-console/internal/audit"
	"call-console/internal/logtail"
	"call-console/internal/store"
	"call-console/pkg/logger"
	"call-console/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

const dsnEnv = "CONSOLE_DATABASE_URL"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "auditctl",
		Short:        "Inspect the call console audit trail",
		SilenceUsage: true,
	}
	root.AddCommand(newExportCmd())
	return root
}

type exportFlags struct {
	dsn    string
	format string
	typ    string
	status string
	search string
	since  time.Duration
	limit  int
	output string
}

// openQuerier is replaced in tests.
var openQuerier = func(ctx context.Context, dsn string) (audit.Querier, func() error, error) {
	db, err := utils.OpenPostgres(ctx, "pgx", dsn, utils.PostgresPoolConfig{MaxOpenConns: 2})
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgres(db), db.Close, nil
}

func newExportCmd() *cobra.Command {
	f := exportFlags{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write audit events as json or csv, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVar(&f.dsn, "dsn", os.Getenv(dsnEnv), "postgres DSN (default $"+dsnEnv+")")
	cmd.Flags().StringVarP(&f.format, "format", "f", logtail.FormatJSON, "output format: json or csv")
	cmd.Flags().StringVar(&f.typ, "type", "", "only events of this type")
	cmd.Flags().StringVar(&f.status, "status", "", "only events with this status")
	cmd.Flags().StringVar(&f.search, "search", "", "case-insensitive substring match")
	cmd.Flags().DurationVar(&f.since, "since", 24*time.Hour, "look back this far; 0 for no lower bound")
	cmd.Flags().IntVar(&f.limit, "limit", logtail.DefaultLimit, "maximum number of events")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func runExport(ctx context.Context, stdout io.Writer, f exportFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.NewWriter(os.Stderr, "local")

	format := strings.ToLower(strings.TrimSpace(f.format))
	if format != logtail.FormatJSON && format != logtail.FormatCSV {
		return fmt.Errorf("unknown format %q (want json or csv)", f.format)
	}
	if strings.TrimSpace(f.dsn) == "" {
		return fmt.Errorf("--dsn or %s is required", dsnEnv)
	}
	if f.limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", f.limit)
	}

	filter := audit.LogFilter{
		Type:   audit.EventType(f.typ),
		Status: audit.Status(f.status),
		Search: f.search,
	}.Normalize()
	if f.since > 0 {
		filter.From = time.Now().Add(-f.since).UTC()
	}
	if err := filter.Validate(); err != nil {
		return err
	}

	q, closeFn, err := openQuerier(ctx, f.dsn)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = closeFn() }()

	events, err := q.Query(ctx, filter, audit.QueryOptions{Limit: f.limit})
	if err != nil {
		return fmt.Errorf("query logs: %w", err)
	}

	w := stdout
	if f.output != "" {
		file, err := os.Create(f.output)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	if err := logtail.Write(w, format, events); err != nil {
		return err
	}
	log.Info("audit export written", "events", len(events), "format", format, "output", f.output)
	return nil
}
