package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"otc-signal-bot/config"
	"otc-signal-bot/internal/api"
	"otc-signal-bot/internal/app"
	"otc-signal-bot/internal/events"
	"otc-signal-bot/internal/jobs"
	"otc-signal-bot/internal/logging"
	"otc-signal-bot/internal/metrics"
	"otc-signal-bot/internal/signals"
	"otc-signal-bot/internal/vault"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.NewLogger(cfg.LoggingConfig, "main")
	logging.SetDefault(logger)
	logger.Info("structured logging initialized", "level", cfg.LoggingConfig.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Secrets from Vault override file and environment values
	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			logger.Fatal("failed to create vault client", "error", err)
		}
		secrets, err := vaultClient.LoadServiceSecrets(ctx)
		if err != nil {
			logger.Fatal("failed to load secrets from vault", "error", err)
		}
		secrets.Apply(cfg)
		if err := cfg.Validate(); err != nil {
			logger.Fatal("configuration invalid after applying vault secrets", "error", err)
		}
		logger.Info("secrets loaded from vault", "address", cfg.VaultConfig.Address)
	}

	eventBus := events.NewEventBus()

	store, closeStore, err := app.OpenStore(ctx, cfg.DatabaseConfig)
	if err != nil {
		logger.Fatal("failed to open signal store", "error", err)
	}
	defer closeStore()

	cacheService, signalCache := app.OpenCache(ctx, cfg.RedisConfig)
	if cacheService != nil {
		defer cacheService.Close()
	}

	pipeline, err := app.BuildPipeline(cfg)
	if err != nil {
		logger.Fatal("failed to build analysis pipeline", "error", err)
	}
	if signalCache != nil {
		pipeline.Analyzer.SetResultCache(signalCache)
		eventBus.Subscribe(events.EventSignalGenerated, func(e events.Event) {
			if s, ok := e.Signal(); ok {
				signalCache.SetLatestSignal(context.Background(), s)
			}
		})
		eventBus.Subscribe(events.EventSignalOutcome, func(e events.Event) {
			if s, ok := e.Signal(); ok {
				signalCache.UpdateLatestSignal(context.Background(), s)
			}
		})
	}
	logger.Info("analysis pipeline ready", "pairs", len(pipeline.Generator.Pairs()))

	notifier, err := app.NewNotifier(ctx, cfg.NotificationConfig)
	if err != nil {
		logger.Fatal("failed to initialise notifications", "error", err)
	}
	notifier.Subscribe(eventBus)
	logger.Info("notifications initialized", "providers", notifier.Providers())

	var promMetrics *metrics.Metrics
	if cfg.MetricsConfig.Enabled {
		promMetrics = metrics.New(nil)
		promMetrics.Subscribe(eventBus)
	}

	manager := signals.NewSignalManager(store, eventBus, app.ManagerConfig(cfg.SignalsConfig))
	manager.RegisterCallback(pipeline.Generator.Generate)

	var scheduler *jobs.Scheduler
	if cfg.JobsConfig.Enabled {
		scheduler = jobs.NewScheduler(eventBus)
		err := scheduler.AddStandardJobs(jobs.Schedules{
			Outcome:   cfg.JobsConfig.OutcomeSchedule,
			Retention: cfg.JobsConfig.RetentionSchedule,
			Prune:     cfg.JobsConfig.PruneSchedule,
		},
			jobs.NewOutcomeEvaluator(store, pipeline.Market, eventBus),
			jobs.NewRetentionJob(store, cfg.JobsConfig.RetentionDays),
			pipeline.Analyzer.PruneCandles,
		)
		if err != nil {
			logger.Fatal("failed to register jobs", "error", err)
		}
		scheduler.Start()
	}

	if err := manager.Start(ctx); err != nil {
		logger.Fatal("failed to start signal manager", "error", err)
	}

	var server *api.Server
	if cfg.ServerConfig.Enabled {
		jwtManager, err := app.NewJWTManager(cfg.AuthConfig)
		if err != nil {
			logger.Fatal("failed to initialise API auth", "error", err)
		}
		deps := api.Dependencies{
			Store:    store,
			Bus:      eventBus,
			Analyzer: pipeline.Generator,
			Manager:  manager,
			Cache:    signalCache,
			JWT:      jwtManager,
			Metrics:  promMetrics,
		}
		if scheduler != nil {
			deps.Jobs = scheduler
		}
		server = api.NewServer(app.ServerConfig(cfg.ServerConfig, cfg.MetricsConfig), deps)
		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Error("HTTP server stopped", "error", err)
				cancel()
			}
		}()
	}

	logger.Info("otc signal bot running",
		"instance_id", manager.InstanceID(),
		"database", cfg.DatabaseConfig.Enabled,
		"redis", signalCache != nil,
		"api", cfg.ServerConfig.Enabled)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", "error", err)
		}
	}
	manager.Stop()
	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()

	// let in-flight notifications finish
	done := make(chan struct{})
	go func() {
		eventBus.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("timed out waiting for event subscribers")
	}

	logger.Info("shutdown complete")
}
