package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ricirt/plexnotify/internal/api"
	"github.com/ricirt/plexnotify/internal/cache"
	"github.com/ricirt/plexnotify/internal/config"
	"github.com/ricirt/plexnotify/internal/db"
	"github.com/ricirt/plexnotify/internal/dispatch"
	"github.com/ricirt/plexnotify/internal/ledger"
	"github.com/ricirt/plexnotify/internal/metrics"
	"github.com/ricirt/plexnotify/internal/notify"
	"github.com/ricirt/plexnotify/internal/scheduler"
	"github.com/ricirt/plexnotify/internal/source"
	"github.com/ricirt/plexnotify/internal/subscriber"
	"github.com/ricirt/plexnotify/internal/watermark"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	// ---- durable stores ----
	var store cache.Store
	switch cfg.CacheBackend {
	case "bolt":
		store, err = cache.NewBoltStore(cfg.DataDir)
	default:
		store, err = cache.NewFileStore(cfg.DataDir)
	}
	if err != nil {
		logger.Fatal("failed to open cache store", zap.Error(err))
	}
	defer store.Close() //nolint:errcheck

	marks, err := watermark.NewStore(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal("failed to open watermark store", zap.Error(err))
	}
	marks.Load()

	// ---- delivery ledger (in-memory unless DATABASE_URL is set) ----
	var ledg ledger.Store = ledger.NewMemStore()
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("database migrations applied")
		ledg = ledger.NewPgStore(pool)
	}
	defer ledg.Close()

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	src := source.NewPlexClient(cfg.PlexURL, cfg.PlexToken, cfg.PlexTimeout, logger)
	c := cache.New(src, store, cfg.CacheTTL, logger, m.CacheHooks())
	c.Load()

	notifier := notify.NewTelegram(cfg.TelegramBaseURL, cfg.TelegramToken, cfg.SendTimeout, cfg.SendRate)
	directory := subscriber.NewDirectory(cfg.SubscribersFile, logger)
	dispatcher := dispatch.New(notifier, ledg, cfg.SendConcurrency, logger, m.DispatchHooks())

	sched := scheduler.New(
		c, marks, directory, dispatcher, ledg,
		cfg.RetryFailed,
		cfg.RefreshInterval, cfg.CheckInterval,
		logger, m.SchedulerHooks(),
	)

	// ---- background loops ----
	// Context for all background goroutines; cancelled on shutdown signal.
	loopCtx, cancelLoops := context.WithCancel(ctx)
	defer cancelLoops()

	var loops sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		sched.RunRefresh(loopCtx)
	}()
	go func() {
		defer loops.Done()
		sched.RunCheck(loopCtx)
	}()

	// ---- HTTP server ----
	router := api.NewRouter(c, sched, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal the loops to stop and wait for the in-flight cycle.
	cancelLoops()
	loops.Wait()

	// 3. One last persist so a restart resumes from the freshest catalog.
	if err := c.Persist(); err != nil {
		logger.Error("final cache persist failed", zap.Error(err))
	}

	logger.Info("server stopped cleanly")
}
