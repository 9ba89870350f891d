package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_DefaultsFullyEnabled(t *testing.T) {
	ff := LoadFeatureFlags()

	ctx := &FeatureContext{UserID: "user-1"}
	assert.True(t, ff.IsEnabled(FeatureProgressionDebuff, ctx))
	assert.True(t, ff.IsEnabled(FeatureQuestAdaptiveTargets, ctx))
	assert.True(t, ff.IsEnabled(FeatureMaintenanceVerifyChains, nil))

	assert.False(t, ff.IsEnabled("progression.unknown", ctx),
		"unknown features stay off")
}

func TestFeatureFlags_EnvBooleanOverride(t *testing.T) {
	t.Setenv("FEATURE_QUEST_RESET", "false")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureQuestReset, &FeatureContext{UserID: "user-1"}))
	assert.True(t, ff.IsEnabled(FeatureQuestManualOverride, &FeatureContext{UserID: "user-1"}))
}

func TestFeatureFlags_EnvPercentOverride(t *testing.T) {
	t.Setenv("FEATURE_EXPERIMENTAL_SNAPSHOTS", "50")

	ff := LoadFeatureFlags()

	features := ff.GetAllFeatures()
	require.Contains(t, features, FeatureExperimentalSnapshots)
	assert.Equal(t, 50, features[FeatureExperimentalSnapshots].RolloutPercent)
	assert.True(t, features[FeatureExperimentalSnapshots].Enabled)
}

func TestFeatureFlags_RolloutBucketsAreStable(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureExperimentalSnapshots, 40))

	inRollout := 0
	for i := 0; i < 200; i++ {
		ctx := &FeatureContext{UserID: fmt.Sprintf("user-%03d", i)}

		first := ff.IsEnabled(FeatureExperimentalSnapshots, ctx)
		for j := 0; j < 5; j++ {
			assert.Equal(t, first, ff.IsEnabled(FeatureExperimentalSnapshots, ctx),
				"a user never flips bucket between checks")
		}
		if first {
			inRollout++
		}
	}

	// The FNV bucketing should land roughly at the configured percentage.
	assert.Greater(t, inRollout, 40)
	assert.Less(t, inRollout, 120)
}

func TestFeatureFlags_UserOverrideWinsOverRollout(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureProgressionReturn))

	ff.SetUserOverride("beta-tester", FeatureProgressionReturn, true)

	assert.True(t, ff.IsEnabled(FeatureProgressionReturn, &FeatureContext{UserID: "beta-tester"}))
	assert.False(t, ff.IsEnabled(FeatureProgressionReturn, &FeatureContext{UserID: "someone-else"}))

	ff.ClearUserOverrides("beta-tester")
	assert.False(t, ff.IsEnabled(FeatureProgressionReturn, &FeatureContext{UserID: "beta-tester"}))
}

func TestFeatureFlags_SetRolloutPercentValidation(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.ErrorIs(t, ff.SetRolloutPercent("no.such.feature", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureQuestReset, 101), ErrInvalidRolloutPercent)
}
