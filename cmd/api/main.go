package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-console/internal/audit"
	"call-console/internal/auth"
	"call-console/internal/calls"
	"call-console/internal/config"
	"call-console/internal/httpapi"
	"call-console/internal/logtail"
	"call-console/internal/notify"
	"call-console/internal/reporting"
	"call-console/internal/scripts"
	"call-console/internal/store"
	"call-console/pkg/logger"
	"call-console/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := store.Migrate(rootCtx, db); err != nil {
		log.Error("schema migration failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	changes := notify.NewRedisNotifier(rdb, log)
	pg := store.NewPostgres(db, store.WithNotifier(changes), store.WithLogger(log))

	auditOpts := audit.Options{QueueSize: cfg.Console.AuditQueueSize, Log: log}
	if cfg.Console.IPLookupURL != "" {
		auditOpts.Enricher = audit.NewIPLookup(cfg.Console.IPLookupURL)
		auditOpts.EnrichTimeout = cfg.Console.IPLookupTimeout
	}
	events := audit.NewLogger(pg, auditOpts)

	callsReg := calls.NewRegistry(calls.Deps{
		Repo:     pg,
		Resolver: pg,
		Events:   events,
		Lease:    store.NewRedisLease(rdb, cfg.Console.ActiveLeaseTTL),
		Log:      log,
	})
	scriptsReg := scripts.NewRegistry(pg, scripts.Options{
		Debounce: cfg.Console.AutosaveDebounce,
		Events:   events,
		Log:      log,
	})
	logsReg := logtail.NewRegistry(pg, logtail.Options{Limit: cfg.Console.TailLimit, Log: log}, cfg.Console.PollInterval)

	dispatcher := notify.NewDispatcher(changes, log)
	dispatcher.Handle(notify.TableCallScripts, func(ctx context.Context, n notify.ChangeNotification) error {
		return scriptsReg.Invalidate(ctx, n.ID)
	})
	dispatcher.Handle(notify.TableLogs, func(ctx context.Context, n notify.ChangeNotification) error {
		logsReg.KickAll()
		return nil
	})

	h := httpapi.Handlers{
		Auth:        authManager,
		DevLogin:    cfg.Auth.DevLogin,
		Provisioner: pg,
		Operators:   pg,
		Events:      events,
		Calls:       callsReg,
		Scripts:     scriptsReg,
		Logs:        logsReg,
		Reports:     reporting.NewService(pg),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerPublicRoutes(r, cfg.Twilio, events, db)
	httpapi.Register(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := dispatcher.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logsReg.Start(gctx)
		<-gctx.Done()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "err", err)
		}
		// Pending script edits are written before the audit logger drains.
		if err := scriptsReg.Close(shutdownCtx); err != nil {
			log.Error("script flush failed", "err", err)
		}
		events.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}
