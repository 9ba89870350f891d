package eventhandler

import (
	"context"
	"log/slog"

	"github.com/habitquest/habit-quest-hub/internal/application/query"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROGRESSION CHANGED HANDLER
// Инвалидирует кешированный снимок прогрессии при любом событии,
// меняющем состояние пользователя.
//
// Философия: кеш — это производная проекция, а не источник истины.
// Проще удалить снимок и дать следующему чтению пересобрать его,
// чем пытаться поддерживать кеш в согласованном состоянии.
// ═══════════════════════════════════════════════════════════════════════════

// OnProgressionChangedHandler сбрасывает кеш снимка при изменении прогрессии.
type OnProgressionChangedHandler struct {
	cache  query.SnapshotCache
	logger *slog.Logger
}

// NewOnProgressionChangedHandler создаёт обработчик инвалидации кеша.
func NewOnProgressionChangedHandler(cache query.SnapshotCache, logger *slog.Logger) *OnProgressionChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnProgressionChangedHandler{
		cache:  cache,
		logger: logger.With("handler", "on_progression_changed"),
	}
}

// Handle обрабатывает событие изменения прогрессии.
// Реализует интерфейс shared.EventHandler.
func (h *OnProgressionChangedHandler) Handle(event shared.Event) error {
	if h.cache == nil {
		return nil
	}

	userID := shared.UserID(event.AggregateID())
	if userID == "" {
		return nil
	}

	// Ошибка инвалидации не критична: снимок имеет короткий TTL
	// и лениво проверяет истечение дебаффа при чтении.
	if err := h.cache.Delete(context.Background(), userID); err != nil {
		h.logger.Warn("failed to invalidate progression snapshot",
			"user_id", userID,
			"event_type", event.EventType(),
			"error", err,
		)
	}

	return nil
}

// Name возвращает имя обработчика для регистрации в шине событий.
func (h *OnProgressionChangedHandler) Name() string {
	return "on_progression_changed"
}
