// Package progression реализует ядро движка прогрессии: детерминированную
// арифметику уровней и модификаторов, неизменяемый журнал XP-событий с
// хеш-цепочкой и конечные автоматы серий, дебаффов и протокола возвращения.
package progression

import (
	"math"
	"sort"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL CURVE
// ══════════════════════════════════════════════════════════════════════════════

// Curve задаёт пороги уровней. Thresholds(maxLevel) возвращает суммарный XP,
// необходимый для уровня n, по индексу n-1 (Thresholds()[0] всегда 0:
// нулевой XP соответствует первому уровню). Последовательность обязана
// строго возрастать начиная со второго элемента.
type Curve interface {
	Thresholds(maxLevel int) []int64
}

// PowerCurve - кривая по умолчанию: стоимость шага с уровня k на k+1
// равна floor(BaseXP * k^Exponent).
type PowerCurve struct {
	// BaseXP - базовая стоимость первого шага.
	BaseXP int64

	// Exponent - показатель роста стоимости (по умолчанию 1.5).
	Exponent float64
}

// DefaultCurve возвращает стандартную кривую прогрессии.
func DefaultCurve() PowerCurve {
	return PowerCurve{BaseXP: 100, Exponent: 1.5}
}

// Thresholds реализует Curve.
func (c PowerCurve) Thresholds(maxLevel int) []int64 {
	if maxLevel < 1 {
		maxLevel = 1
	}

	thresholds := make([]int64, maxLevel)
	var total int64
	for k := 1; k < maxLevel; k++ {
		step := int64(math.Floor(float64(c.BaseXP) * math.Pow(float64(k), c.Exponent)))
		if step < 1 {
			step = 1 // кривая обязана строго возрастать
		}
		total += step
		thresholds[k] = total
	}
	return thresholds
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL CALCULATOR
// ══════════════════════════════════════════════════════════════════════════════

// DefaultMaxLevel - глубина предвычисленных порогов.
const DefaultMaxLevel = 500

// Calculator отображает суммарный XP в уровень. Чистый и детерминированный:
// одинаковый вход всегда даёт одинаковый результат независимо от порядка
// вызовов - на это опираются поля levelBefore/levelAfter журнала.
type Calculator struct {
	thresholds []int64
}

// NewCalculator создаёт калькулятор с предвычисленными порогами кривой.
func NewCalculator(curve Curve, maxLevel int) *Calculator {
	if maxLevel < 1 {
		maxLevel = DefaultMaxLevel
	}
	return &Calculator{thresholds: curve.Thresholds(maxLevel)}
}

// NewDefaultCalculator создаёт калькулятор со стандартной кривой.
func NewDefaultCalculator() *Calculator {
	return NewCalculator(DefaultCurve(), DefaultMaxLevel)
}

// LevelOf возвращает уровень для суммарного XP.
// Бинарный поиск по порогам, не линейный проход.
func (c *Calculator) LevelOf(totalXP int64) shared.Level {
	if totalXP < 0 {
		totalXP = 0
	}

	// Первый индекс, чей порог превышает totalXP; уровень равен этому индексу.
	idx := sort.Search(len(c.thresholds), func(i int) bool {
		return c.thresholds[i] > totalXP
	})

	if idx < int(shared.MinLevel) {
		return shared.MinLevel
	}
	return shared.Level(idx)
}

// ThresholdFor возвращает суммарный XP, необходимый для уровня.
func (c *Calculator) ThresholdFor(level shared.Level) int64 {
	if level < shared.MinLevel {
		return 0
	}
	if int(level) > len(c.thresholds) {
		return c.thresholds[len(c.thresholds)-1]
	}
	return c.thresholds[level-1]
}

// ProgressToNext возвращает процент прогресса к следующему уровню (0-100).
func (c *Calculator) ProgressToNext(totalXP int64) int {
	level := c.LevelOf(totalXP)
	current := c.ThresholdFor(level)
	next := c.ThresholdFor(level + 1)

	span := next - current
	if span <= 0 {
		return 100
	}
	return int((totalXP - current) * 100 / span)
}
