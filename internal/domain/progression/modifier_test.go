package progression

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

func TestApplyModifiers(t *testing.T) {
	tests := []struct {
		name string
		base int64
		mods []Modifier
		want int64
	}{
		{
			name: "no modifiers",
			base: 100,
			mods: nil,
			want: 100,
		},
		{
			name: "single bonus",
			base: 100,
			mods: []Modifier{{Type: ModifierBonus, Multiplier: 1.25}},
			want: 125,
		},
		{
			name: "bonus then penalty",
			base: 100,
			mods: []Modifier{
				{Type: ModifierBonus, Multiplier: 1.25},
				{Type: ModifierPenalty, Multiplier: 0.5},
			},
			want: 62, // 100 -> 125 -> floor(62.5)
		},
		{
			name: "penalty listed first still applies after bonus",
			base: 100,
			mods: []Modifier{
				{Type: ModifierPenalty, Multiplier: 0.5},
				{Type: ModifierBonus, Multiplier: 1.25},
			},
			want: 62,
		},
		{
			name: "floor after every step",
			base: 10,
			mods: []Modifier{
				{Type: ModifierBonus, Multiplier: 1.15},    // 11.5 -> 11
				{Type: ModifierPenalty, Multiplier: 0.5},   // 5.5 -> 5
			},
			want: 5,
		},
		{
			name: "bonuses ordered by Order within group",
			base: 101,
			mods: []Modifier{
				{Type: ModifierBonus, Multiplier: 1.5, Order: 2},  // second: 126 -> 189
				{Type: ModifierBonus, Multiplier: 1.25, Order: 1}, // first: floor(126.25)
			},
			want: 189,
		},
		{
			name: "heavy penalty clamps at zero",
			base: 1,
			mods: []Modifier{
				{Type: ModifierPenalty, Multiplier: 0.1}, // floor(0.1) = 0
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyModifiers(tt.base, tt.mods))
		})
	}
}

func TestApplyModifiers_Deterministic(t *testing.T) {
	mods := []Modifier{
		{Type: ModifierPenalty, Multiplier: 0.5},
		{Type: ModifierBonus, Multiplier: 1.25},
		{Type: ModifierBonus, Multiplier: 1.1, Order: 1},
	}

	first := ApplyModifiers(100, mods)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, ApplyModifiers(100, mods), "replay must reproduce the stored amount")
	}
}

func TestApplyModifiers_DoesNotMutateInput(t *testing.T) {
	mods := []Modifier{
		{Type: ModifierPenalty, Multiplier: 0.5},
		{Type: ModifierBonus, Multiplier: 1.25},
	}

	ApplyModifiers(100, mods)
	assert.Equal(t, ModifierPenalty, mods[0].Type, "caller's slice must not be reordered")
}

func TestApplySigned(t *testing.T) {
	mods := []Modifier{{Type: ModifierBonus, Multiplier: 1.25}}

	assert.Equal(t, int64(125), ApplySigned(100, mods))
	assert.Equal(t, int64(-125), ApplySigned(-100, mods), "removals scale on the absolute value")
}

func TestModifier_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mod     Modifier
		wantErr bool
	}{
		{"valid bonus", Modifier{Type: ModifierBonus, Multiplier: 1.5}, false},
		{"valid penalty", Modifier{Type: ModifierPenalty, Multiplier: 0.5}, false},
		{"zero multiplier", Modifier{Type: ModifierBonus, Multiplier: 0}, true},
		{"negative multiplier", Modifier{Type: ModifierBonus, Multiplier: -1}, true},
		{"NaN multiplier", Modifier{Type: ModifierBonus, Multiplier: math.NaN()}, true},
		{"infinite multiplier", Modifier{Type: ModifierPenalty, Multiplier: math.Inf(1)}, true},
		{"unknown type", Modifier{Type: "boost", Multiplier: 1.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mod.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, shared.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
