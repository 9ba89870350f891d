// Package quest реализует жизненный цикл квестов: статические шаблоны,
// инстансы на пользователя и период, частичное выполнение и
// персонализированные адаптивные цели.
package quest

import (
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/requirement"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUEST TEMPLATE
// ══════════════════════════════════════════════════════════════════════════════

// Template - статическое определение квеста. Шаблоны неизменяемы в рантайме;
// всё персональное (прогресс, адаптированная цель) живёт в инстансах
// и в AdaptedTarget.
type Template struct {
	ID          shared.TemplateID
	Title       string
	Description string

	// Requirement - условие выполнения (дерево выражений).
	Requirement requirement.Expr

	// BaseXP - базовое начисление за полное выполнение.
	BaseXP int64

	// BaseTarget - базовая числовая цель для адаптации
	// (0, если у квеста нет числовой цели).
	BaseTarget float64

	// PeriodType - ежедневный или еженедельный квест.
	PeriodType shared.PeriodType

	// Core - входит ли квест в обязательный дневной набор.
	// Закрытие дня считает выполненными только core-квесты.
	Core bool

	// AllowPartial - допускается ли частичное выполнение.
	AllowPartial bool

	// MinPartialPercent - минимальный процент (0-100) для частичного зачёта.
	MinPartialPercent int

	CreatedAt time.Time
}

// Validate проверяет корректность шаблона.
func (t Template) Validate() error {
	if !t.ID.IsValid() {
		return shared.NewDomainError("quest", "Validate", shared.ErrInvalidID, "invalid template ID")
	}
	if t.Title == "" {
		return shared.NewDomainError("quest", "Validate", shared.ErrEmptyValue, "template title cannot be empty")
	}
	if t.Requirement == nil {
		return shared.NewDomainError("quest", "Validate", shared.ErrEmptyValue, "template requirement cannot be nil")
	}
	if t.BaseXP <= 0 {
		return shared.NewDomainError("quest", "Validate", shared.ErrValueOutOfRange, "base XP must be positive")
	}
	if !t.PeriodType.IsValid() {
		return shared.NewDomainError("quest", "Validate", shared.ErrValidation, "unknown period type")
	}
	if t.MinPartialPercent < 0 || t.MinPartialPercent > 100 {
		return shared.NewDomainError("quest", "Validate", shared.ErrValueOutOfRange, "min partial percent must be within 0-100")
	}
	return nil
}

// PartialXP возвращает XP за частичное выполнение с долей ratio,
// либо 0, если частичный зачёт не положен.
func (t Template) PartialXP(ratio float64) int64 {
	if !t.AllowPartial {
		return 0
	}
	if ratio*100 < float64(t.MinPartialPercent) {
		return 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return int64(float64(t.BaseXP) * ratio) // floor через усечение
}
