package requirement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_NumericGTE(t *testing.T) {
	expr := Numeric{Metric: "steps", Operator: OpGTE, Value: 10000}

	tests := []struct {
		name      string
		steps     float64
		satisfied bool
		ratio     float64
	}{
		{"exactly at target", 10000, true, 1},
		{"above target", 14000, true, 1},
		{"three quarters", 7500, false, 0.75},
		{"zero", 0, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(expr, Metrics{"steps": NumberValue(tt.steps)})
			assert.Equal(t, tt.satisfied, v.Satisfied)
			assert.InDelta(t, tt.ratio, v.AchievedRatio, 1e-9)
		})
	}
}

func TestEvaluate_NumericLTE(t *testing.T) {
	// "Not more than 2200 kcal" style requirement.
	expr := Numeric{Metric: "calories", Operator: OpLTE, Value: 2200}

	v := Evaluate(expr, Metrics{"calories": NumberValue(2000)})
	assert.True(t, v.Satisfied)
	assert.Equal(t, 1.0, v.AchievedRatio)

	v = Evaluate(expr, Metrics{"calories": NumberValue(4400)})
	assert.False(t, v.Satisfied)
	assert.InDelta(t, 0.5, v.AchievedRatio, 1e-9)
}

func TestEvaluate_NumericEQ(t *testing.T) {
	expr := Numeric{Metric: "sessions", Operator: OpEQ, Value: 3}

	v := Evaluate(expr, Metrics{"sessions": NumberValue(3)})
	assert.True(t, v.Satisfied)

	v = Evaluate(expr, Metrics{"sessions": NumberValue(2)})
	assert.False(t, v.Satisfied)
	assert.Equal(t, 0.0, v.AchievedRatio)
}

func TestEvaluate_MissingMetricIsZero(t *testing.T) {
	v := Evaluate(Numeric{Metric: "steps", Operator: OpGTE, Value: 10000}, Metrics{})
	assert.False(t, v.Satisfied)
	assert.Equal(t, 0.0, v.AchievedRatio)

	v = Evaluate(Boolean{Metric: "workout_logged", Expected: true}, Metrics{})
	assert.False(t, v.Satisfied)

	// Missing metric satisfies an Expected=false boolean node.
	v = Evaluate(Boolean{Metric: "late_snack", Expected: false}, Metrics{})
	assert.True(t, v.Satisfied)
	assert.Equal(t, 1.0, v.AchievedRatio)
}

func TestEvaluate_Boolean(t *testing.T) {
	expr := Boolean{Metric: "workout_logged", Expected: true}

	v := Evaluate(expr, Metrics{"workout_logged": BoolValue(true)})
	assert.True(t, v.Satisfied)
	assert.Equal(t, 1.0, v.AchievedRatio)

	v = Evaluate(expr, Metrics{"workout_logged": BoolValue(false)})
	assert.False(t, v.Satisfied)
	assert.Equal(t, 0.0, v.AchievedRatio)
}

func TestEvaluate_CompoundAnd(t *testing.T) {
	expr := Compound{
		Operator: OpAnd,
		Children: []Expr{
			Numeric{Metric: "steps", Operator: OpGTE, Value: 10000},
			Numeric{Metric: "water_ml", Operator: OpGTE, Value: 2000},
		},
	}

	// First fulfilled, second at half: and = min of ratios, not satisfied.
	v := Evaluate(expr, Metrics{
		"steps":    NumberValue(12000),
		"water_ml": NumberValue(1000),
	})
	assert.False(t, v.Satisfied)
	assert.InDelta(t, 0.5, v.AchievedRatio, 1e-9)

	v = Evaluate(expr, Metrics{
		"steps":    NumberValue(12000),
		"water_ml": NumberValue(2500),
	})
	assert.True(t, v.Satisfied)
	assert.Equal(t, 1.0, v.AchievedRatio)
}

func TestEvaluate_CompoundOr(t *testing.T) {
	expr := Compound{
		Operator: OpOr,
		Children: []Expr{
			Numeric{Metric: "steps", Operator: OpGTE, Value: 10000},
			Boolean{Metric: "workout_logged", Expected: true},
		},
	}

	v := Evaluate(expr, Metrics{
		"steps":          NumberValue(4000),
		"workout_logged": BoolValue(true),
	})
	assert.True(t, v.Satisfied)
	assert.Equal(t, 1.0, v.AchievedRatio)

	v = Evaluate(expr, Metrics{
		"steps": NumberValue(4000),
	})
	assert.False(t, v.Satisfied)
	assert.InDelta(t, 0.4, v.AchievedRatio, 1e-9)
}

func TestEvaluate_EmptyCompoundNeverSatisfied(t *testing.T) {
	for _, op := range []CompoundOp{OpAnd, OpOr} {
		v := Evaluate(Compound{Operator: op}, Metrics{"steps": NumberValue(99999)})
		assert.False(t, v.Satisfied, "empty %s must not auto-complete", op)
		assert.Equal(t, 0.0, v.AchievedRatio)
	}
}

func TestEvaluate_NestedCompound(t *testing.T) {
	// (steps >= 10000 AND water >= 2000) OR workout_logged
	expr := Compound{
		Operator: OpOr,
		Children: []Expr{
			Compound{
				Operator: OpAnd,
				Children: []Expr{
					Numeric{Metric: "steps", Operator: OpGTE, Value: 10000},
					Numeric{Metric: "water_ml", Operator: OpGTE, Value: 2000},
				},
			},
			Boolean{Metric: "workout_logged", Expected: true},
		},
	}

	v := Evaluate(expr, Metrics{
		"steps":    NumberValue(8000),
		"water_ml": NumberValue(1500),
	})
	assert.False(t, v.Satisfied)
	// or = max(min(0.8, 0.75), 0) = 0.75
	assert.InDelta(t, 0.75, v.AchievedRatio, 1e-9)
}
