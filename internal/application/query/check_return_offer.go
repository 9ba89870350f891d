package query

import (
	"context"
	"fmt"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK RETURN OFFER QUERY
// Сообщает, положено ли пользователю предложение протокола возвращения.
// Чистое чтение: сам переход INACTIVE -> OFFERED выполняют команда
// OfferReturn или задача обнаружения отсутствия.
// ══════════════════════════════════════════════════════════════════════════════

// CheckReturnOfferQuery содержит параметры запроса.
type CheckReturnOfferQuery struct {
	// UserID - идентификатор пользователя.
	UserID string

	// Now - момент проверки (по умолчанию текущее время).
	Now time.Time
}

// Validate проверяет корректность параметров.
func (q CheckReturnOfferQuery) Validate() error {
	if _, err := shared.NewUserID(q.UserID); err != nil {
		return fmt.Errorf("check_return_offer: %w", err)
	}
	return nil
}

// ReturnOfferDTO - результат проверки.
type ReturnOfferDTO struct {
	// ShouldOffer - достигнут ли порог отсутствия (или предложение
	// уже выставлено).
	ShouldOffer bool `json:"should_offer"`

	// DaysSinceActivity - полных дней с последней активности.
	DaysSinceActivity int `json:"days_since_activity"`

	// State - текущее состояние протокола.
	State string `json:"state"`

	// Day - текущий день протокола (0 вне ACTIVE).
	Day int `json:"day,omitempty"`
}

// CheckReturnOfferHandler обрабатывает запрос.
type CheckReturnOfferHandler struct {
	progressions progression.ProgressionRepository
}

// NewCheckReturnOfferHandler создаёт обработчик запроса.
func NewCheckReturnOfferHandler(progressions progression.ProgressionRepository) *CheckReturnOfferHandler {
	return &CheckReturnOfferHandler{progressions: progressions}
}

// Handle выполняет запрос.
func (h *CheckReturnOfferHandler) Handle(ctx context.Context, q CheckReturnOfferQuery) (*ReturnOfferDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	now := q.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	state, err := h.progressions.Find(ctx, shared.UserID(q.UserID))
	if err != nil {
		return nil, fmt.Errorf("check_return_offer: failed to load progression: %w", err)
	}

	days := state.AbsenceDays(now)
	dto := &ReturnOfferDTO{
		DaysSinceActivity: days,
		State:             string(state.ReturnState),
		Day:               state.ReturnDay,
	}
	switch state.ReturnState {
	case progression.ReturnOffered:
		dto.ShouldOffer = true
	case progression.ReturnInactive:
		dto.ShouldOffer = days >= progression.ReturnOfferThresholdDays
	}
	return dto, nil
}
