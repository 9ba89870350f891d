package eventhandler

import (
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
	"github.com/habitquest/habit-quest-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// AUDIT TRAIL HANDLER
// Пишет каждое доменное событие в отдельный аудит-журнал.
//
// Журнал XP сцеплен хешами и воспроизводим, но события вокруг него
// (закрытия дня, предложения протокола возвращения, адаптации целей)
// живут только в шине. Аудит-журнал сохраняет их в одном месте.
// ═══════════════════════════════════════════════════════════════════════════

// AuditTrailHandler пишет все доменные события в аудит-журнал.
// Подписывается на шину через SubscribeAll.
type AuditTrailHandler struct {
	log *logger.Logger
}

// NewAuditTrailHandler создаёт обработчик аудит-журнала.
func NewAuditTrailHandler(log *logger.Logger) *AuditTrailHandler {
	if log == nil {
		log = logger.Default()
	}

	return &AuditTrailHandler{
		log: log.With(logger.Component("audit_trail")),
	}
}

// Handle записывает событие в аудит-журнал.
// Реализует интерфейс shared.EventHandler.
func (h *AuditTrailHandler) Handle(event shared.Event) error {
	fields := []logger.Field{
		logger.String("event_type", string(event.EventType())),
		logger.UserID(event.AggregateID()),
		logger.Time("occurred_at", event.OccurredAt()),
	}

	for key, value := range event.Payload() {
		fields = append(fields, logger.Any(key, value))
	}

	h.log.Info("domain event", fields...)
	return nil
}

// Name возвращает имя обработчика для регистрации в шине событий.
func (h *AuditTrailHandler) Name() string {
	return "audit_trail"
}
