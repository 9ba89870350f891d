package progression

import (
	"math"
	"sort"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MODIFIER STACK
// ══════════════════════════════════════════════════════════════════════════════

// ModifierType - вид модификатора XP.
type ModifierType string

const (
	// ModifierBonus - повышающий множитель (стрик, событие).
	ModifierBonus ModifierType = "bonus"

	// ModifierPenalty - понижающий множитель (дебафф).
	ModifierPenalty ModifierType = "penalty"
)

// IsValid проверяет, известен ли вид модификатора.
func (t ModifierType) IsValid() bool {
	return t == ModifierBonus || t == ModifierPenalty
}

// Modifier - один множитель, применяемый к базовой сумме XP.
type Modifier struct {
	// Type - bonus или penalty.
	Type ModifierType

	// Multiplier - множитель (> 0).
	Multiplier float64

	// Order - порядок применения внутри своей группы (по возрастанию).
	Order int
}

// Validate проверяет корректность модификатора.
func (m Modifier) Validate() error {
	if !m.Type.IsValid() {
		return shared.NewDomainError("progression", "Validate", shared.ErrValidation, "unknown modifier type")
	}
	if m.Multiplier <= 0 || math.IsNaN(m.Multiplier) || math.IsInf(m.Multiplier, 0) {
		return shared.ErrInvalidMultiplier
	}
	return nil
}

// ValidateModifiers проверяет весь список.
func ValidateModifiers(mods []Modifier) error {
	for _, m := range mods {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplyModifiers применяет модификаторы к базовой сумме.
//
// Порядок фиксирован и не управляется вызывающим кодом: сначала все bonus
// по возрастанию Order, затем все penalty по возрастанию Order. После
// каждого умножения результат округляется вниз (floor, не round) - иначе
// дробный дрейф сделал бы повтор вычисления невоспроизводимым. Аудит
// обязан уметь воспроизвести finalAmount из baseAmount и списка
// модификаторов исторического события бит в бит.
//
// Результат никогда не опускается ниже нуля.
func ApplyModifiers(base int64, mods []Modifier) int64 {
	if len(mods) == 0 {
		if base < 0 {
			return 0
		}
		return base
	}

	ordered := make([]Modifier, len(mods))
	copy(ordered, mods)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Type != ordered[j].Type {
			return ordered[i].Type == ModifierBonus
		}
		return ordered[i].Order < ordered[j].Order
	})

	amount := base
	for _, m := range ordered {
		amount = int64(math.Floor(float64(amount) * m.Multiplier))
	}

	if amount < 0 {
		return 0
	}
	return amount
}

// ApplySigned применяет модификаторы к сумме со знаком: removal-события
// хранят отрицательный baseAmount, модификаторы действуют на модуль.
func ApplySigned(base int64, mods []Modifier) int64 {
	if base >= 0 {
		return ApplyModifiers(base, mods)
	}
	return -ApplyModifiers(-base, mods)
}
