package quest

import (
	"math"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADAPTED TARGET
// ══════════════════════════════════════════════════════════════════════════════

// Параметры адаптации по умолчанию. Пороги настраиваются конфигурацией
// через AdaptPolicy.
const (
	DefaultAdaptWindowDays = 14
	DefaultAdaptMinSample  = 5
	DefaultAdaptStep       = 0.10
	DefaultFloorFraction   = 0.5
	DefaultCeilingMultiple = 2.0
	DefaultRaiseRate       = 0.85
	DefaultLowerRate       = 0.40
)

// AdaptPolicy - настройки алгоритма адаптации.
type AdaptPolicy struct {
	// WindowDays - глубина скользящего окна истории.
	WindowDays int

	// MinSample - минимум финализированных инстансов для адаптации.
	MinSample int

	// Step - относительный шаг сдвига цели за одну адаптацию.
	Step float64

	// FloorFraction/CeilingMultiple - границы цели относительно базовой.
	FloorFraction   float64
	CeilingMultiple float64

	// RaiseRate - доля выполнений, выше которой цель поднимается;
	// LowerRate - доля, ниже которой цель опускается.
	RaiseRate float64
	LowerRate float64
}

// DefaultAdaptPolicy возвращает настройки по умолчанию.
func DefaultAdaptPolicy() AdaptPolicy {
	return AdaptPolicy{
		WindowDays:      DefaultAdaptWindowDays,
		MinSample:       DefaultAdaptMinSample,
		Step:            DefaultAdaptStep,
		FloorFraction:   DefaultFloorFraction,
		CeilingMultiple: DefaultCeilingMultiple,
		RaiseRate:       DefaultRaiseRate,
		LowerRate:       DefaultLowerRate,
	}
}

// AdaptedTarget - персонализированная числовая цель пары (пользователь, шаблон).
// Создаётся лениво при первой адаптации или ручной установке.
type AdaptedTarget struct {
	UserID     shared.UserID
	TemplateID shared.TemplateID

	BaseTarget    float64
	AdaptedTarget float64

	// ManualOverride замораживает автоматическую адаптацию.
	ManualOverride bool

	// CompletionRate - доля выполненных инстансов в окне (0-1).
	CompletionRate float64

	// AverageAchievement - средняя достигнутая доля цели в окне
	// (без верхней отсечки: 1.3 значит стабильное перевыполнение).
	AverageAchievement float64

	LastAdaptedAt *time.Time
	UpdatedAt     time.Time
}

// NewAdaptedTarget создаёт цель с базовым значением.
func NewAdaptedTarget(userID shared.UserID, templateID shared.TemplateID, baseTarget float64, now time.Time) *AdaptedTarget {
	return &AdaptedTarget{
		UserID:        userID,
		TemplateID:    templateID,
		BaseTarget:    baseTarget,
		AdaptedTarget: baseTarget,
		UpdatedAt:     now,
	}
}

// AdaptResult - итог одной адаптации.
type AdaptResult struct {
	OldTarget float64
	NewTarget float64
	Adapted   bool
}

// Adapt пересчитывает цель по истории финализированных инстансов окна.
//
// При ручной фиксации - no-op с текущей целью. При недостаточной выборке
// статистика обновляется, но цель не двигается. Иначе цель сдвигается на
// Step вверх при стабильном выполнении (и перевыполнении) либо вниз при
// стабильном недоборе, с отсечкой в границах
// [FloorFraction, CeilingMultiple] x BaseTarget.
func (a *AdaptedTarget) Adapt(history []*Instance, policy AdaptPolicy, now time.Time) AdaptResult {
	result := AdaptResult{OldTarget: a.AdaptedTarget, NewTarget: a.AdaptedTarget}

	if a.ManualOverride {
		return result
	}

	var finalized, completed int
	var achievementSum float64
	for _, inst := range history {
		if !inst.Status.Final() || inst.Status == StatusSkipped {
			continue
		}
		finalized++
		achievementSum += inst.Achievement()
		if inst.Status == StatusCompleted && !inst.Partial {
			completed++
		}
	}

	if finalized == 0 {
		return result
	}

	a.CompletionRate = float64(completed) / float64(finalized)
	a.AverageAchievement = achievementSum / float64(finalized)
	a.UpdatedAt = now

	if finalized < policy.MinSample {
		return result
	}

	target := a.AdaptedTarget
	switch {
	case a.CompletionRate >= policy.RaiseRate && a.AverageAchievement >= 1.0:
		target *= 1 + policy.Step
	case a.CompletionRate <= policy.LowerRate:
		target *= 1 - policy.Step
	default:
		return result
	}

	target = clampTarget(target, a.BaseTarget, policy)
	if target == a.AdaptedTarget {
		return result
	}

	a.AdaptedTarget = target
	t := now
	a.LastAdaptedAt = &t
	result.NewTarget = target
	result.Adapted = true
	return result
}

// SetManual устанавливает явную цель и замораживает адаптацию.
// Ручное значение тоже подчиняется границам относительно базовой цели.
func (a *AdaptedTarget) SetManual(value float64, policy AdaptPolicy, now time.Time) error {
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return shared.NewDomainError("quest", "SetManualTarget", shared.ErrValueOutOfRange, "manual target must be positive")
	}
	a.AdaptedTarget = clampTarget(value, a.BaseTarget, policy)
	a.ManualOverride = true
	a.UpdatedAt = now
	return nil
}

// ClearManualOverride снимает ручную фиксацию; цель остаётся на месте
// до следующей адаптации.
func (a *AdaptedTarget) ClearManualOverride(now time.Time) {
	a.ManualOverride = false
	a.UpdatedAt = now
}

func clampTarget(target, base float64, policy AdaptPolicy) float64 {
	floor := base * policy.FloorFraction
	ceiling := base * policy.CeilingMultiple
	if target < floor {
		return floor
	}
	if target > ceiling {
		return ceiling
	}
	return target
}
