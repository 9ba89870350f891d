package requirement

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATOR
// Чистая функция без ввода-вывода: (выражение, снимок метрик) → вердикт.
// ══════════════════════════════════════════════════════════════════════════════

// Evaluate вычисляет требование по снимку метрик.
//
// Правила:
//   - Numeric gte/gt: ratio = clamp(actual/value, 0, 1);
//   - Numeric lte/lt: обратное отношение value/actual (перевыполнение в
//     меньшую сторону засчитывается полностью);
//   - Boolean: ratio 0 или 1;
//   - Compound and: satisfied = все дети, ratio = min по детям;
//   - Compound or: satisfied = хотя бы один, ratio = max по детям;
//   - Compound без детей не выполняется, ratio 0.
func Evaluate(expr Expr, metrics Metrics) Verdict {
	switch e := expr.(type) {
	case Numeric:
		return evaluateNumeric(e, metrics)
	case Boolean:
		if metrics.Bool(e.Metric) == e.Expected {
			return Verdict{Satisfied: true, AchievedRatio: 1}
		}
		return Verdict{Satisfied: false, AchievedRatio: 0}
	case Compound:
		return evaluateCompound(e, metrics)
	default:
		// Неизвестный узел не может быть выполнен.
		return Verdict{}
	}
}

func evaluateNumeric(e Numeric, metrics Metrics) Verdict {
	actual := metrics.Number(e.Metric)

	var satisfied bool
	switch e.Operator {
	case OpGTE:
		satisfied = actual >= e.Value
	case OpGT:
		satisfied = actual > e.Value
	case OpLTE:
		satisfied = actual <= e.Value
	case OpLT:
		satisfied = actual < e.Value
	case OpEQ:
		satisfied = actual == e.Value
	}

	return Verdict{
		Satisfied:     satisfied,
		AchievedRatio: numericRatio(e.Operator, actual, e.Value, satisfied),
	}
}

// numericRatio вычисляет степень выполнения числового узла.
func numericRatio(op Op, actual, target float64, satisfied bool) float64 {
	if satisfied {
		return 1
	}

	switch op {
	case OpGTE, OpGT:
		if target <= 0 {
			return 0
		}
		return clamp01(actual / target)
	case OpLTE, OpLT:
		// Цель "не больше": чем меньше перебор, тем ближе к единице.
		if actual <= 0 {
			return 0
		}
		return clamp01(target / actual)
	case OpEQ:
		// Равенство либо достигнуто, либо нет.
		return 0
	}
	return 0
}

func evaluateCompound(e Compound, metrics Metrics) Verdict {
	if len(e.Children) == 0 {
		return Verdict{Satisfied: false, AchievedRatio: 0}
	}

	verdicts := make([]Verdict, len(e.Children))
	for i, child := range e.Children {
		verdicts[i] = Evaluate(child, metrics)
	}

	switch e.Operator {
	case OpAnd:
		result := Verdict{Satisfied: true, AchievedRatio: 1}
		for _, v := range verdicts {
			if !v.Satisfied {
				result.Satisfied = false
			}
			if v.AchievedRatio < result.AchievedRatio {
				result.AchievedRatio = v.AchievedRatio
			}
		}
		return result
	case OpOr:
		result := Verdict{Satisfied: false, AchievedRatio: 0}
		for _, v := range verdicts {
			if v.Satisfied {
				result.Satisfied = true
			}
			if v.AchievedRatio > result.AchievedRatio {
				result.AchievedRatio = v.AchievedRatio
			}
		}
		return result
	}

	return Verdict{}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
