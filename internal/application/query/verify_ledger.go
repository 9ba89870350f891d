package query

import (
	"context"
	"fmt"

	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY LEDGER QUERY
// Диагностическая проверка хеш-цепочки журнала одного пользователя.
// Не на горячем пути; повреждение только сообщается, не чинится.
// ══════════════════════════════════════════════════════════════════════════════

// VerifyLedgerQuery содержит параметры запроса.
type VerifyLedgerQuery struct {
	// UserID - идентификатор пользователя.
	UserID string
}

// Validate проверяет корректность параметров.
func (q VerifyLedgerQuery) Validate() error {
	if _, err := shared.NewUserID(q.UserID); err != nil {
		return fmt.Errorf("verify_ledger: %w", err)
	}
	return nil
}

// VerifyLedgerHandler обрабатывает запрос проверки журнала.
type VerifyLedgerHandler struct {
	ledger progression.LedgerRepository
}

// NewVerifyLedgerHandler создаёт обработчик запроса.
func NewVerifyLedgerHandler(ledger progression.LedgerRepository) *VerifyLedgerHandler {
	return &VerifyLedgerHandler{ledger: ledger}
}

// Handle выполняет проверку. Возвращает отчёт и ошибку ErrLedgerCorrupted,
// если цепочка повреждена (отчёт заполняется в обоих случаях).
func (h *VerifyLedgerHandler) Handle(ctx context.Context, q VerifyLedgerQuery) (progression.ChainReport, error) {
	if err := q.Validate(); err != nil {
		return progression.ChainReport{}, err
	}

	userID := shared.UserID(q.UserID)
	events, err := h.ledger.ListEvents(ctx, userID)
	if err != nil {
		return progression.ChainReport{}, fmt.Errorf("verify_ledger: failed to list events: %w", err)
	}

	report := progression.VerifyChain(userID, events)
	return report, report.Err()
}
