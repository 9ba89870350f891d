// Package requirement реализует DSL требований квестов: дерево выражений
// из трёх видов узлов (Numeric, Boolean, Compound) и чистый вычислитель,
// который сравнивает требование со снимком метрик пользователя.
package requirement

// ══════════════════════════════════════════════════════════════════════════════
// EXPRESSION TREE (sealed sum type)
// ══════════════════════════════════════════════════════════════════════════════

// Op представляет оператор сравнения числового узла.
type Op string

const (
	OpGTE Op = "gte"
	OpLTE Op = "lte"
	OpEQ  Op = "eq"
	OpGT  Op = "gt"
	OpLT  Op = "lt"
)

// IsValid проверяет, известен ли оператор.
func (o Op) IsValid() bool {
	switch o {
	case OpGTE, OpLTE, OpEQ, OpGT, OpLT:
		return true
	}
	return false
}

// CompoundOp представляет логический оператор составного узла.
type CompoundOp string

const (
	OpAnd CompoundOp = "and"
	OpOr  CompoundOp = "or"
)

// IsValid проверяет, известен ли логический оператор.
func (o CompoundOp) IsValid() bool {
	return o == OpAnd || o == OpOr
}

// Expr - запечатанный интерфейс дерева требований.
// Реализации: Numeric, Boolean, Compound. Неэкспортируемый маркер
// закрывает множество вариантов для исчерпывающего switch в вычислителе.
type Expr interface {
	isExpr()
}

// Numeric - числовое требование: metric <op> value.
type Numeric struct {
	// Metric - имя метрики в снимке (например, "steps").
	Metric string

	// Operator - оператор сравнения.
	Operator Op

	// Value - целевое значение.
	Value float64
}

func (Numeric) isExpr() {}

// Boolean - булево требование: metric == expected.
type Boolean struct {
	// Metric - имя метрики в снимке (например, "workout_logged").
	Metric string

	// Expected - ожидаемое значение.
	Expected bool
}

func (Boolean) isExpr() {}

// Compound - составное требование над дочерними узлами.
type Compound struct {
	// Operator - and или or.
	Operator CompoundOp

	// Children - дочерние выражения. Пустой список никогда не
	// выполняется (ratio 0), чтобы исключить случайное автозавершение.
	Children []Expr
}

func (Compound) isExpr() {}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Value - значение метрики: число или булево.
type Value struct {
	Number float64
	Bool   bool
	IsBool bool
}

// NumberValue создаёт числовое значение метрики.
func NumberValue(n float64) Value {
	return Value{Number: n}
}

// BoolValue создаёт булево значение метрики.
func BoolValue(b bool) Value {
	return Value{Bool: b, IsBool: true}
}

// Metrics - снимок метрик на момент вычисления требования.
// Отсутствующая метрика читается как 0/false, это не ошибка.
type Metrics map[string]Value

// Number возвращает числовое значение метрики или 0.
func (m Metrics) Number(name string) float64 {
	v, ok := m[name]
	if !ok || v.IsBool {
		return 0
	}
	return v.Number
}

// Bool возвращает булево значение метрики или false.
func (m Metrics) Bool(name string) bool {
	v, ok := m[name]
	if !ok || !v.IsBool {
		return false
	}
	return v.Bool
}

// ══════════════════════════════════════════════════════════════════════════════
// VERDICT
// ══════════════════════════════════════════════════════════════════════════════

// Verdict - результат вычисления требования.
type Verdict struct {
	// Satisfied - выполнено ли требование полностью.
	Satisfied bool

	// AchievedRatio - степень выполнения в диапазоне [0, 1].
	// Используется для частичного зачёта квеста.
	AchievedRatio float64
}
