package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mariachi-loyalty/dispatch/internal/api"
	"github.com/mariachi-loyalty/dispatch/internal/batch"
	"github.com/mariachi-loyalty/dispatch/internal/config"
	"github.com/mariachi-loyalty/dispatch/internal/db"
	"github.com/mariachi-loyalty/dispatch/internal/directory"
	"github.com/mariachi-loyalty/dispatch/internal/dispatch"
	"github.com/mariachi-loyalty/dispatch/internal/domain"
	"github.com/mariachi-loyalty/dispatch/internal/metrics"
	"github.com/mariachi-loyalty/dispatch/internal/queue"
	"github.com/mariachi-loyalty/dispatch/internal/scheduler"
	"github.com/mariachi-loyalty/dispatch/internal/sender"
	"github.com/mariachi-loyalty/dispatch/internal/store"
	"github.com/mariachi-loyalty/dispatch/internal/sweep"
	"github.com/mariachi-loyalty/dispatch/internal/task"
	"github.com/mariachi-loyalty/dispatch/internal/tasks"
	"github.com/mariachi-loyalty/dispatch/internal/worker"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- database ---
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database ready")

	st := store.NewPgStore(pool)
	dir := directory.NewPgDirectory(pool)

	// --- metrics ---
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// --- broker: router + named queues ---
	router, err := task.NewRouter(task.DefaultRules())
	if err != nil {
		logger.Fatal("failed to build task router", zap.Error(err))
	}
	broker := queue.New(router, task.DefaultQueues(), cfg.QueueCapacity)

	// --- senders ---
	senders := sender.NewRegistry().
		Bind(domain.ChannelEmail, sender.NewLogSender(domain.ChannelEmail, logger)).
		Bind(domain.ChannelPush, sender.NewLogSender(domain.ChannelPush, logger)).
		Bind(domain.ChannelSMS, sender.NewLogSender(domain.ChannelSMS, logger)).
		Bind(domain.ChannelInApp, sender.NewLogSender(domain.ChannelInApp, logger)).
		Bind(domain.ChannelWebhook, sender.NewWebhookSender(cfg.WebhookBaseURL, cfg.WebhookTimeout))
	limiters := sender.NewChannelLimiters(cfg.RateLimitPerChannel)

	// --- dispatch core ---
	onDelivered, onFailed := m.DispatchHooks()
	dispatcher := dispatch.New(st, senders, limiters, logger, dispatch.Hooks{
		OnDelivered: onDelivered,
		OnFailed:    onFailed,
	})

	tracker := batch.NewTracker()
	coordinator := batch.NewCoordinator(st, dir, broker, tracker, cfg.BatchConcurrency, logger)
	sweeper := sweep.New(st, logger)

	// --- task bodies ---
	registry := worker.NewRegistry()
	err = tasks.RegisterAll(registry, tasks.Deps{
		Store:       st,
		Directory:   dir,
		Broker:      broker,
		Dispatcher:  dispatcher,
		Coordinator: coordinator,
		Sweeper:     sweeper,
		Syncer:      &tasks.LogSyncer{Logger: logger},
		Reports:     &tasks.LogReporter{Logger: logger},
		Cache:       tasks.NewAnalyticsCache(),
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("failed to register task handlers", zap.Error(err))
	}

	// --- worker pools: one per queue ---
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	onExecuted, onTaskFailed := m.WorkerHooks()
	hooks := worker.MetricHooks{OnExecuted: onExecuted, OnFailed: onTaskFailed}
	limits := worker.Limits{Soft: cfg.SoftTimeLimit, Hard: cfg.HardTimeLimit}

	var pools []*worker.Pool
	for queueName := range task.DefaultQueues() {
		p := worker.NewPool(
			queueName,
			cfg.WorkersFor(queueName),
			cfg.MaxTasksPerWorker,
			limits,
			broker,
			registry,
			logger,
			hooks,
		)
		p.Start(workerCtx)
		pools = append(pools, p)
	}
	logger.Info("worker pools started", zap.Int("queues", len(pools)))

	// --- queue depth observer ---
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				m.ObserveQueueDepths(broker.Depths())
			}
		}
	}()

	// --- beat scheduler ---
	beat, err := scheduler.NewBeat(broker, scheduler.DefaultSchedule(), logger)
	if err != nil {
		logger.Fatal("failed to build beat scheduler", zap.Error(err))
	}
	beat.Start()
	logger.Info("beat scheduler started")

	// --- HTTP server ---
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(broker, tracker, reg, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("http server listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting requests first, then stop producing scheduled tasks,
	// then let the workers drain their in-flight tasks.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	beat.Stop()

	cancelWorkers()
	for _, p := range pools {
		p.Wait()
	}

	logger.Info("shutdown complete")
}
