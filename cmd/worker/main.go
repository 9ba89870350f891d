// Package main - точка входа фоновых процессов (Worker) Habit Quest Hub.
//
// Worker отвечает за периодические задачи:
// - Проверка хеш-цепочек журнала XP
// - Детектирование длительного отсутствия и предложение протокола возвращения
//
// Повреждённая цепочка диагностируется и публикуется как событие,
// но никогда не чинится автоматически.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/habitquest/habit-quest-hub/config"

	// Application layer
	"github.com/habitquest/habit-quest-hub/internal/application/command"
	"github.com/habitquest/habit-quest-hub/internal/application/eventhandler"

	// Domain layer
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"

	// Infrastructure layer
	"github.com/habitquest/habit-quest-hub/internal/infrastructure/messaging"
	"github.com/habitquest/habit-quest-hub/internal/infrastructure/persistence/postgres"
	"github.com/habitquest/habit-quest-hub/internal/infrastructure/scheduler"
	"github.com/habitquest/habit-quest-hub/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Habit Quest Hub worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПРОВЕРКА МИГРАЦИЙ (Worker также должен иметь актуальную схему)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.AutoMigrate {
		log.Info("checking database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	busConfig.AsyncMode = cfg.EventBus.AsyncMode
	busConfig.WorkerPoolSize = cfg.EventBus.WorkerPoolSize
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	corruptionHandler := eventhandler.NewOnChainCorruptedHandler(log)
	if err := eventBus.Subscribe(shared.EventChainCorrupted, corruptionHandler); err != nil {
		return fmt.Errorf("failed to subscribe corruption handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ И КОМАНД
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	ledgerRepo := postgres.NewLedgerRepository(dbConn)
	progressionRepo := postgres.NewProgressionRepository(dbConn)

	returnProtocol := command.NewReturnProtocolHandler(progressionRepo, eventBus)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. РЕГИСТРАЦИЯ ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:        log,
		EnableMetrics: true,
	})

	verifyCfg := jobs.DefaultVerifyChainsConfig()
	verifyCfg.Timeout = cfg.Scheduler.JobTimeout
	verifyJob := jobs.NewVerifyChainsJob(progressionRepo, ledgerRepo, eventBus, log, verifyCfg)
	if err := sched.Register(verifyJob, scheduler.NewIntervalSchedule(cfg.Scheduler.VerifyChainsInterval)); err != nil {
		return fmt.Errorf("failed to register verify_chains: %w", err)
	}

	absentCfg := jobs.DefaultDetectAbsentConfig()
	absentCfg.AbsenceThresholdDays = cfg.Progression.ReturnThresholdDays
	absentJob := jobs.NewDetectAbsentJob(progressionRepo, returnProtocol, log, absentCfg)
	absentSchedule := scheduler.NewDailySchedule(cfg.Scheduler.DetectAbsentHour, cfg.Scheduler.DetectAbsentMinute)
	if err := sched.Register(absentJob, absentSchedule); err != nil {
		return fmt.Errorf("failed to register detect_absent: %w", err)
	}

	if !cfg.Features.IsEnabled(config.FeatureMaintenanceVerifyChains, nil) {
		if err := sched.DisableJob(verifyJob.Name()); err != nil {
			log.Warn("failed to disable verify_chains", "error", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ЗАПУСК SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
	} else {
		log.Info("scheduler disabled by configuration")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Habit Quest Hub worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
