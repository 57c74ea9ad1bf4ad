package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/config"
	"github.com/hamed0406/sitewatch/internal/httpapi"
	"github.com/hamed0406/sitewatch/internal/httpapi/middleware"
	"github.com/hamed0406/sitewatch/internal/logging"
	"github.com/hamed0406/sitewatch/internal/notify"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/repo/memory"
	"github.com/hamed0406/sitewatch/internal/repo/postgres"
	"github.com/hamed0406/sitewatch/internal/repo/sqlite"
	"github.com/hamed0406/sitewatch/internal/scheduler"
)

type stores struct {
	targets repo.TargetStore
	results repo.ResultStore
	alerts  repo.AlertStore
	close   func()
}

func openStores(ctx context.Context, dsn string, logger *zap.Logger) (stores, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		st, err := postgres.New(ctx, dsn, logger)
		if err != nil {
			return stores{}, err
		}
		logger.Info("store_selected", zap.String("kind", "postgres"))
		return stores{targets: st, results: st, alerts: st, close: st.Close}, nil
	case dsn != "":
		st, err := sqlite.New(ctx, dsn, logger)
		if err != nil {
			return stores{}, err
		}
		logger.Info("store_selected", zap.String("kind", "sqlite"), zap.String("path", dsn))
		return stores{targets: st, results: st, alerts: st, close: func() { _ = st.Close() }}, nil
	default:
		st := memory.New()
		logger.Info("store_selected", zap.String("kind", "memory"))
		return stores{targets: st, results: st, alerts: st, close: func() {}}, nil
	}
}

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	db, err := openStores(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("store_open_error", zap.Error(err))
	}
	defer db.close()

	light := &probe.RetryChecker{
		Inner:    probe.NewHTTPChecker(cfg.ProbeTimeout),
		Attempts: cfg.RetryAttempts,
		Backoff:  cfg.RetryBackoff,
	}
	runner := scheduler.NewOrchestrator(logger, light, probe.NewBrowserChecker())

	var channels notify.Multi
	if cfg.SlackWebhook != "" {
		channels = append(channels, notify.NewSlack(cfg.SlackWebhook))
	}
	if cfg.AlertWebhook != "" {
		channels = append(channels, notify.NewWebhook(cfg.AlertWebhook))
	}
	sink := scheduler.NewPublisher(logger, db.alerts, channels)

	sup := scheduler.New(logger, db.targets, db.results, sink, runner, cfg.CheckInterval)
	if err := sup.Start(ctx); err != nil {
		logger.Fatal("supervisor_start_error", zap.Error(err))
	}

	api := httpapi.NewServer(logger, db.targets, db.results, db.alerts, sup)
	handler := api.Router(
		middleware.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys},
		cfg.AllowedOrigins,
		cfg.RateLimitPerMin,
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api_serve_error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutdown_started")

	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn("api_shutdown_error", zap.Error(err))
	}
	if err := sup.Stop(shCtx); err != nil {
		logger.Warn("supervisor_stop_error", zap.Error(err))
	}
	logger.Info("shutdown_complete")
}
