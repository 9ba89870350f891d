package quest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

func finalizedInstances(t *testing.T, n int, completed int, achievement float64) []*Instance {
	t.Helper()

	now := time.Now().UTC()
	tmpl := stepsTemplate()
	out := make([]*Instance, 0, n)
	for i := 0; i < n; i++ {
		inst, err := NewInstance(tmpl, testUserID, shared.DailyPeriod("2026-08-01"), 10000, now)
		require.NoError(t, err)
		require.NoError(t, inst.UpdateProgress(achievement*10000, now))
		if i < completed {
			require.NoError(t, inst.Complete(1, 100, "ev", now))
		} else {
			require.NoError(t, inst.Fail(achievement, now))
		}
		out = append(out, inst)
	}
	return out
}

func TestAdapt_RaisesOnConsistentCompletion(t *testing.T) {
	now := time.Now().UTC()
	target := NewAdaptedTarget(testUserID, "steps-daily", 10000, now)
	history := finalizedInstances(t, 10, 10, 1.2)

	result := target.Adapt(history, DefaultAdaptPolicy(), now)

	assert.True(t, result.Adapted)
	assert.Equal(t, 10000.0, result.OldTarget)
	assert.InDelta(t, 11000.0, result.NewTarget, 1e-9)
	assert.InDelta(t, 1.0, target.CompletionRate, 1e-9)
	assert.InDelta(t, 1.2, target.AverageAchievement, 1e-9)
	require.NotNil(t, target.LastAdaptedAt)
}

func TestAdapt_LowersOnConsistentUndershoot(t *testing.T) {
	now := time.Now().UTC()
	target := NewAdaptedTarget(testUserID, "steps-daily", 10000, now)
	history := finalizedInstances(t, 10, 2, 0.3)

	result := target.Adapt(history, DefaultAdaptPolicy(), now)

	assert.True(t, result.Adapted)
	assert.InDelta(t, 9000.0, result.NewTarget, 1e-9)
}

func TestAdapt_HoldsInMiddleBand(t *testing.T) {
	now := time.Now().UTC()
	target := NewAdaptedTarget(testUserID, "steps-daily", 10000, now)
	history := finalizedInstances(t, 10, 6, 0.8)

	result := target.Adapt(history, DefaultAdaptPolicy(), now)

	assert.False(t, result.Adapted)
	assert.Equal(t, 10000.0, target.AdaptedTarget)
	assert.InDelta(t, 0.6, target.CompletionRate, 1e-9, "stats refresh even without a move")
}

func TestAdapt_ClampsToCeiling(t *testing.T) {
	now := time.Now().UTC()
	policy := DefaultAdaptPolicy()
	target := NewAdaptedTarget(testUserID, "steps-daily", 10000, now)
	target.AdaptedTarget = 19500

	history := finalizedInstances(t, 10, 10, 1.5)
	result := target.Adapt(history, policy, now)

	assert.True(t, result.Adapted)
	assert.Equal(t, 20000.0, result.NewTarget, "never above CeilingMultiple x base")
}

func TestAdapt_ClampsToFloor(t *testing.T) {
	now := time.Now().UTC()
	target := NewAdaptedTarget(testUserID, "steps-daily", 10000, now)
	target.AdaptedTarget = 5400

	history := finalizedInstances(t, 10, 0, 0.1)
	result := target.Adapt(history, DefaultAdaptPolicy(), now)

	assert.True(t, result.Adapted)
	assert.Equal(t, 5000.0, result.NewTarget, "never below FloorFraction x base")

	// Already at the floor: nothing left to move.
	again := target.Adapt(history, DefaultAdaptPolicy(), now)
	assert.False(t, again.Adapted)
	assert.Equal(t, 5000.0, target.AdaptedTarget)
}

func TestAdapt_ManualOverrideFreezes(t *testing.T) {
	now := time.Now().UTC()
	target := NewAdaptedTarget(testUserID, "steps-daily", 10000, now)
	require.NoError(t, target.SetManual(12000, DefaultAdaptPolicy(), now))

	history := finalizedInstances(t, 10, 10, 1.5)
	result := target.Adapt(history, DefaultAdaptPolicy(), now)

	assert.False(t, result.Adapted)
	assert.Equal(t, 12000.0, target.AdaptedTarget)

	target.ClearManualOverride(now)
	result = target.Adapt(history, DefaultAdaptPolicy(), now)
	assert.True(t, result.Adapted, "adaptation resumes after the override is cleared")
}

func TestAdapt_InsufficientSample(t *testing.T) {
	now := time.Now().UTC()
	target := NewAdaptedTarget(testUserID, "steps-daily", 10000, now)
	history := finalizedInstances(t, 3, 3, 1.2)

	result := target.Adapt(history, DefaultAdaptPolicy(), now)

	assert.False(t, result.Adapted)
	assert.InDelta(t, 1.0, target.CompletionRate, 1e-9, "stats still refresh below the sample floor")
}

func TestAdapt_SkippedInstancesExcluded(t *testing.T) {
	now := time.Now().UTC()
	tmpl := stepsTemplate()
	target := NewAdaptedTarget(testUserID, "steps-daily", 10000, now)

	history := finalizedInstances(t, 6, 6, 1.1)
	skipped, err := NewInstance(tmpl, testUserID, shared.DailyPeriod("2026-08-07"), 10000, now)
	require.NoError(t, err)
	require.NoError(t, skipped.Skip(now))
	history = append(history, skipped)

	target.Adapt(history, DefaultAdaptPolicy(), now)
	assert.InDelta(t, 1.0, target.CompletionRate, 1e-9, "skips do not count against the user")
}

func TestSetManual_Validation(t *testing.T) {
	now := time.Now().UTC()
	target := NewAdaptedTarget(testUserID, "steps-daily", 10000, now)

	assert.Error(t, target.SetManual(0, DefaultAdaptPolicy(), now))
	assert.Error(t, target.SetManual(-5, DefaultAdaptPolicy(), now))

	// Manual values obey the same clamps.
	require.NoError(t, target.SetManual(50000, DefaultAdaptPolicy(), now))
	assert.Equal(t, 20000.0, target.AdaptedTarget)
}
