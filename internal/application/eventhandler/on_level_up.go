// Package eventhandler содержит обработчики доменных событий.
// Эти обработчики реализуют event-driven архитектуру и связывают
// различные части системы через асинхронные события.
//
// Философия: обработчики событий — это "реактивная" часть системы.
// Они реагируют на изменения и запускают побочные эффекты,
// такие как инвалидация кешей или запись вех прогресса.
package eventhandler

import (
	"log/slog"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL UP HANDLER
// Обрабатывает событие повышения уровня пользователя.
//
// Философия "Прогресс заметен":
// - Каждое повышение уровня фиксируется в журнале
// - Вехи (каждый N-й уровень) подсвечиваются отдельно
// ═══════════════════════════════════════════════════════════════════════════

// OnLevelUpHandler обрабатывает событие повышения уровня.
type OnLevelUpHandler struct {
	logger *slog.Logger
	config LevelUpConfig
}

// LevelUpConfig содержит конфигурацию обработчика.
type LevelUpConfig struct {
	// MilestoneEvery — каждый N-й уровень считается вехой.
	// Вехи логируются с повышенной заметностью.
	MilestoneEvery int
}

// DefaultLevelUpConfig возвращает конфигурацию по умолчанию.
func DefaultLevelUpConfig() LevelUpConfig {
	return LevelUpConfig{
		MilestoneEvery: 5,
	}
}

// NewOnLevelUpHandler создаёт новый обработчик события повышения уровня.
func NewOnLevelUpHandler(logger *slog.Logger, config LevelUpConfig) *OnLevelUpHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MilestoneEvery <= 0 {
		config.MilestoneEvery = DefaultLevelUpConfig().MilestoneEvery
	}

	return &OnLevelUpHandler{
		logger: logger.With("handler", "on_level_up"),
		config: config,
	}
}

// Handle обрабатывает событие повышения уровня.
// Реализует интерфейс shared.EventHandler.
func (h *OnLevelUpHandler) Handle(event shared.Event) error {
	levelEvent, ok := event.(shared.LevelUpEvent)
	if !ok {
		h.logger.Warn("received non-LevelUpEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	h.logger.Info("level up",
		"user_id", levelEvent.AggregateID(),
		"old_level", levelEvent.OldLevel,
		"new_level", levelEvent.NewLevel,
		"total_xp", levelEvent.TotalXP,
	)

	if h.isMilestone(levelEvent.NewLevel) {
		h.logger.Info("level milestone reached",
			"user_id", levelEvent.AggregateID(),
			"level", levelEvent.NewLevel,
			"milestone_every", h.config.MilestoneEvery,
		)
	}

	return nil
}

// isMilestone проверяет, является ли уровень вехой.
// Повышение может перепрыгнуть несколько уровней за одно начисление,
// поэтому проверяем сам достигнутый уровень, а не дельту.
func (h *OnLevelUpHandler) isMilestone(level int) bool {
	return level > 0 && level%h.config.MilestoneEvery == 0
}

// Name возвращает имя обработчика для регистрации в шине событий.
func (h *OnLevelUpHandler) Name() string {
	return "on_level_up"
}
