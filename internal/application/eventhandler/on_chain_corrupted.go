package eventhandler

import (
	"log/slog"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON CHAIN CORRUPTED HANDLER
// Обрабатывает событие обнаружения повреждения хеш-цепочки журнала.
//
// Философия: повреждение журнала — это сигнал для оператора,
// а не повод для автоматического "лечения". Обработчик только
// фиксирует факт с максимальной заметностью; восстановление —
// всегда ручная процедура.
// ═══════════════════════════════════════════════════════════════════════════

// OnChainCorruptedHandler логирует обнаруженные повреждения журнала.
type OnChainCorruptedHandler struct {
	logger *slog.Logger
}

// NewOnChainCorruptedHandler создаёт обработчик события повреждения цепочки.
func NewOnChainCorruptedHandler(logger *slog.Logger) *OnChainCorruptedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnChainCorruptedHandler{
		logger: logger.With("handler", "on_chain_corrupted"),
	}
}

// Handle обрабатывает событие повреждения цепочки.
// Реализует интерфейс shared.EventHandler.
func (h *OnChainCorruptedHandler) Handle(event shared.Event) error {
	payload := event.Payload()

	h.logger.Error("ledger chain corruption detected",
		"user_id", event.AggregateID(),
		"bad_event_id", payload["bad_event_id"],
		"details", payload["details"],
		"detected_at", event.OccurredAt(),
	)

	return nil
}

// Name возвращает имя обработчика для регистрации в шине событий.
func (h *OnChainCorruptedHandler) Name() string {
	return "on_chain_corrupted"
}
