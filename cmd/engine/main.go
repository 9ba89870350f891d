// Package main - точка входа сервиса прогрессии Habit Quest Hub.
//
// Движок прогрессии превращает ежедневные действия пользователя в XP,
// уровни, серии и адаптивные цели. Журнал XP неизменяем и сцеплен хешами:
// любое начисление можно воспроизвести бит-в-бит.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries)
// - Infrastructure: реализация репозиториев, кэш, шина событий
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
	"github.com/habitquest/habit-quest-hub/internal/application/query"

	// Domain layer
	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/quest"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"

	// Infrastructure layer
	"github.com/habitquest/habit-quest-hub/internal/infrastructure/messaging"
	"github.com/habitquest/habit-quest-hub/internal/infrastructure/persistence/postgres"
	"github.com/habitquest/habit-quest-hub/internal/infrastructure/persistence/redis"

	"github.com/habitquest/habit-quest-hub/pkg/logger"
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

// Services группирует прикладной слой движка. Транспорт (HTTP, бот, gRPC)
// не входит в этот сервис: встраивающее приложение получает готовые
// обработчики и вызывает их напрямую.
type Services struct {
	RecordXP       *command.RecordXPEventHandler
	CloseDay       *command.CloseDayHandler
	CompleteQuest  *command.CompleteQuestHandler
	ResetQuest     *command.ResetQuestHandler
	AdaptTarget    *command.AdaptTargetHandler
	ManualTarget   *command.ManualTargetHandler
	ReturnProtocol *command.ReturnProtocolHandler

	GetProgression   *query.GetProgressionHandler
	CheckReturnOffer *query.CheckReturnOfferHandler
	VerifyLedger     *query.VerifyLedgerHandler
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
	log.Info("starting Habit Quest Hub engine",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
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
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.AutoMigrate {
		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var snapshotCache query.SnapshotCache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			snapshotCache = redis.NewProgressionCache(redisCache, 0)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	busConfig.AsyncMode = cfg.EventBus.AsyncMode
	busConfig.WorkerPoolSize = cfg.EventBus.WorkerPoolSize

	var eventBus messaging.EventBus
	if cfg.EventBus.UseRedis && redisCache != nil {
		eventBus, err = messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisCache.Client(),
			ChannelName:    cfg.EventBus.ChannelName,
			LocalBusConfig: busConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis event bus: %w", err)
		}
	} else {
		eventBus = messaging.NewInMemoryEventBus(busConfig)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	ledgerRepo := postgres.NewLedgerRepository(dbConn)
	progressionRepo := postgres.NewProgressionRepository(dbConn)
	templateRepo := postgres.NewTemplateRepository(dbConn)
	instanceRepo := postgres.NewInstanceRepository(dbConn)
	targetRepo := postgres.NewTargetRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER (Commands, Queries)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	curve := progression.PowerCurve{
		BaseXP:   cfg.Progression.BaseXP,
		Exponent: cfg.Progression.CurveExponent,
	}
	calc := progression.NewCalculator(curve, cfg.Progression.MaxLevel)

	recordXP := command.NewRecordXPEventHandler(
		ledgerRepo, progressionRepo, calc, eventBus,
		command.DefaultRecordXPEventHandlerConfig(),
	)

	closeDayCfg := command.DefaultCloseDayHandlerConfig()
	closeDayCfg.DebuffWindow = cfg.Progression.DebuffWindow
	closeDay := command.NewCloseDayHandler(
		progressionRepo, templateRepo, instanceRepo, eventBus, closeDayCfg,
	)

	services := &Services{
		RecordXP:      recordXP,
		CloseDay:      closeDay,
		CompleteQuest: command.NewCompleteQuestHandler(templateRepo, instanceRepo, targetRepo, progressionRepo, recordXP, eventBus),
		ResetQuest:    command.NewResetQuestHandler(instanceRepo, recordXP, eventBus),
		AdaptTarget:   command.NewAdaptTargetHandler(templateRepo, instanceRepo, targetRepo, eventBus, quest.DefaultAdaptPolicy()),
		ManualTarget:  command.NewManualTargetHandler(templateRepo, targetRepo, eventBus, quest.DefaultAdaptPolicy()),
		ReturnProtocol: command.NewReturnProtocolHandler(
			progressionRepo, eventBus,
		),
		GetProgression:   query.NewGetProgressionHandler(progressionRepo, calc, snapshotCache),
		CheckReturnOffer: query.NewCheckReturnOfferHandler(progressionRepo),
		VerifyLedger:     query.NewVerifyLedgerHandler(ledgerRepo),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. РЕГИСТРАЦИЯ EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("registering event handlers...")

	levelUpHandler := eventhandler.NewOnLevelUpHandler(log, eventhandler.DefaultLevelUpConfig())
	if err := eventBus.Subscribe(shared.EventLevelUp, levelUpHandler); err != nil {
		return fmt.Errorf("failed to subscribe level up handler: %w", err)
	}

	corruptionHandler := eventhandler.NewOnChainCorruptedHandler(log)
	if err := eventBus.Subscribe(shared.EventChainCorrupted, corruptionHandler); err != nil {
		return fmt.Errorf("failed to subscribe corruption handler: %w", err)
	}

	auditLog := logger.New(logger.Options{
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: false,
	})
	auditHandler := eventhandler.NewAuditTrailHandler(auditLog)
	if err := eventBus.SubscribeAll(auditHandler); err != nil {
		return fmt.Errorf("failed to subscribe audit trail handler: %w", err)
	}

	if snapshotCache != nil {
		invalidation := eventhandler.NewOnProgressionChangedHandler(snapshotCache, log)
		for _, eventType := range []shared.EventType{
			shared.EventXPGained,
			shared.EventXPRemoved,
			shared.EventLevelUp,
			shared.EventStreakUpdated,
			shared.EventStreakBroken,
			shared.EventDebuffApplied,
			shared.EventDebuffCleared,
			shared.EventDayClosed,
			shared.EventReturnOffered,
			shared.EventReturnAccepted,
			shared.EventReturnDeclined,
			shared.EventReturnAdvanced,
			shared.EventReturnCompleted,
		} {
			if err := eventBus.Subscribe(eventType, invalidation); err != nil {
				return fmt.Errorf("failed to subscribe invalidation handler: %w", err)
			}
		}
	}

	// Прикладной слой готов; транспорт подключается снаружи.
	_ = services

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Habit Quest Hub engine is running")

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
