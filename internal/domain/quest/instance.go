package quest

import (
	"time"

	"github.com/google/uuid"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUEST INSTANCE
// ══════════════════════════════════════════════════════════════════════════════

// Status - состояние инстанса квеста.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusSkipped   Status = "SKIPPED"
)

// IsValid проверяет, известен ли статус.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Final сообщает, является ли статус конечным.
func (s Status) Final() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// Instance - квест одного пользователя в одном периоде. После перехода в
// конечный статус инстанс неизменяем; единственное исключение - явный Reset,
// который компенсируется обратным событием журнала.
type Instance struct {
	ID         string
	TemplateID shared.TemplateID
	UserID     shared.UserID
	Period     shared.Period

	Status Status

	// CurrentValue/TargetValue - прогресс по числовой цели.
	CurrentValue float64
	TargetValue  float64

	// CompletionPercent - достигнутая доля в процентах (0-100),
	// фиксируется при финализации из вердикта оценщика.
	CompletionPercent int

	// Partial - true, если зачёт был частичным.
	Partial bool

	// XPAwarded - начисленный XP; XPEventID - событие журнала начисления.
	XPAwarded int64
	XPEventID string

	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewInstance создаёт активный инстанс шаблона для пользователя и периода.
func NewInstance(tmpl Template, userID shared.UserID, period shared.Period, targetValue float64, now time.Time) (*Instance, error) {
	if !userID.IsValid() {
		return nil, shared.NewDomainError("quest", "NewInstance", shared.ErrInvalidID, "invalid user ID")
	}
	if !period.IsValid() {
		return nil, shared.NewDomainError("quest", "NewInstance", shared.ErrValidation, "invalid period")
	}
	if targetValue <= 0 {
		targetValue = tmpl.BaseTarget
	}
	return &Instance{
		ID:          uuid.NewString(),
		TemplateID:  tmpl.ID,
		UserID:      userID,
		Period:      period,
		Status:      StatusActive,
		TargetValue: targetValue,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UpdateProgress обновляет текущее значение. Допустимо только в ACTIVE.
func (i *Instance) UpdateProgress(value float64, now time.Time) error {
	if i.Status != StatusActive {
		return shared.ErrInstanceFinalized
	}
	i.CurrentValue = value
	i.UpdatedAt = now
	return nil
}

// Achievement возвращает достигнутую долю цели (без верхней отсечки).
func (i *Instance) Achievement() float64 {
	if i.TargetValue <= 0 {
		return 0
	}
	return i.CurrentValue / i.TargetValue
}

// Complete финализирует инстанс как выполненный.
func (i *Instance) Complete(ratio float64, xpAwarded int64, xpEventID string, now time.Time) error {
	return i.finalize(StatusCompleted, ratio, false, xpAwarded, xpEventID, now)
}

// CompletePartial финализирует инстанс как частично выполненный.
func (i *Instance) CompletePartial(ratio float64, xpAwarded int64, xpEventID string, now time.Time) error {
	return i.finalize(StatusCompleted, ratio, true, xpAwarded, xpEventID, now)
}

// Fail финализирует инстанс как проваленный.
func (i *Instance) Fail(ratio float64, now time.Time) error {
	return i.finalize(StatusFailed, ratio, false, 0, "", now)
}

// Skip финализирует инстанс как пропущенный (без штрафа и без XP).
func (i *Instance) Skip(now time.Time) error {
	return i.finalize(StatusSkipped, 0, false, 0, "", now)
}

func (i *Instance) finalize(status Status, ratio float64, partial bool, xpAwarded int64, xpEventID string, now time.Time) error {
	if i.Status != StatusActive {
		return shared.ErrInstanceFinalized
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	i.Status = status
	i.CompletionPercent = int(ratio * 100)
	i.Partial = partial
	i.XPAwarded = xpAwarded
	i.XPEventID = xpEventID
	t := now
	i.CompletedAt = &t
	i.UpdatedAt = now
	return nil
}

// Reset возвращает финализированный инстанс в ACTIVE. Начисленный XP
// компенсируется обратным событием журнала на стороне вызывающего кода;
// здесь только сбрасывается привязка.
func (i *Instance) Reset(now time.Time) (reversedXP int64, err error) {
	if i.Status == StatusActive {
		return 0, shared.ErrInstanceNotFinal
	}
	reversedXP = i.XPAwarded
	i.Status = StatusActive
	i.CompletionPercent = 0
	i.Partial = false
	i.XPAwarded = 0
	i.XPEventID = ""
	i.CompletedAt = nil
	i.UpdatedAt = now
	return reversedXP, nil
}
