package requirement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

func TestParse_NumericNode(t *testing.T) {
	expr, err := Parse([]byte(`{"kind":"numeric","metric":"steps","operator":"gte","value":10000}`))
	require.NoError(t, err)

	numeric, ok := expr.(Numeric)
	require.True(t, ok)
	assert.Equal(t, "steps", numeric.Metric)
	assert.Equal(t, OpGTE, numeric.Operator)
	assert.Equal(t, 10000.0, numeric.Value)
}

func TestParse_CompoundTree(t *testing.T) {
	data := []byte(`{
		"kind": "compound",
		"operator": "and",
		"children": [
			{"kind": "numeric", "metric": "steps", "operator": "gte", "value": 8000},
			{"kind": "boolean", "metric": "workout_logged", "expected": true}
		]
	}`)

	expr, err := Parse(data)
	require.NoError(t, err)

	compound, ok := expr.(Compound)
	require.True(t, ok)
	assert.Equal(t, OpAnd, compound.Operator)
	require.Len(t, compound.Children, 2)

	_, ok = compound.Children[0].(Numeric)
	assert.True(t, ok)
	boolean, ok := compound.Children[1].(Boolean)
	require.True(t, ok)
	assert.True(t, boolean.Expected)
}

func TestParse_BooleanDefaultsToExpectedTrue(t *testing.T) {
	expr, err := Parse([]byte(`{"kind":"boolean","metric":"workout_logged"}`))
	require.NoError(t, err)

	boolean, ok := expr.(Boolean)
	require.True(t, ok)
	assert.True(t, boolean.Expected)
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown kind", `{"kind":"fancy"}`},
		{"unknown numeric operator", `{"kind":"numeric","metric":"steps","operator":"between","value":1}`},
		{"unknown compound operator", `{"kind":"compound","operator":"xor","children":[]}`},
		{"empty metric", `{"kind":"numeric","operator":"gte","value":1}`},
		{"not json", `steps >= 10000`},
		{"bad child", `{"kind":"compound","operator":"and","children":[{"kind":"numeric","operator":"gte"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	original := Compound{
		Operator: OpOr,
		Children: []Expr{
			Numeric{Metric: "sleep_hours", Operator: OpGTE, Value: 7.5},
			Boolean{Metric: "nap_logged", Expected: false},
		},
	}

	data, err := Marshal(original)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}
