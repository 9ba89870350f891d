package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitquest/habit-quest-hub/internal/domain/quest"
	"github.com/habitquest/habit-quest-hub/internal/domain/requirement"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

type completeQuestEnv struct {
	store     *fakeStore
	templates *fakeTemplates
	instances *fakeInstances
	targets   *fakeTargets
	publisher *capturingPublisher
	handler   *CompleteQuestHandler
}

func newCompleteQuestEnv(templates ...*quest.Template) *completeQuestEnv {
	env := &completeQuestEnv{
		store:     newFakeStore(),
		templates: newFakeTemplates(templates...),
		instances: newFakeInstances(),
		targets:   newFakeTargets(),
		publisher: &capturingPublisher{},
	}
	recordXP := newRecordXPHandler(env.store, env.publisher)
	env.handler = NewCompleteQuestHandler(env.templates, env.instances, env.targets, env.store, recordXP, env.publisher)
	return env
}

func stepsTemplate() *quest.Template {
	return &quest.Template{
		ID:                "steps-daily",
		Title:             "Daily steps",
		Requirement:       requirement.Numeric{Metric: "steps", Operator: requirement.OpGTE, Value: 10000},
		BaseXP:            100,
		BaseTarget:        10000,
		PeriodType:        shared.PeriodDaily,
		Core:              true,
		AllowPartial:      true,
		MinPartialPercent: 50,
	}
}

func TestCompleteQuest_SatisfiedAwardsFullXP(t *testing.T) {
	now := time.Date(2026, 8, 1, 20, 0, 0, 0, time.UTC)
	env := newCompleteQuestEnv(stepsTemplate())

	result, err := env.handler.Handle(context.Background(), CompleteQuestCommand{
		UserID:       testUser,
		TemplateID:   "steps-daily",
		Period:       shared.DailyPeriod("2026-08-01"),
		Metrics:      requirement.Metrics{"steps": requirement.NumberValue(12000)},
		CurrentValue: 12000,
		Timestamp:    now,
	})
	require.NoError(t, err)

	assert.True(t, result.Verdict.Satisfied)
	assert.False(t, result.Partial)
	assert.Equal(t, int64(100), result.XPAwarded)
	assert.Equal(t, quest.StatusCompleted, result.Instance.Status)
	assert.Equal(t, 100, result.Instance.CompletionPercent)
	assert.NotEmpty(t, result.Instance.XPEventID, "the instance points at its ledger event")

	assert.True(t, env.publisher.has(shared.EventQuestCompleted))
	assert.True(t, env.publisher.has(shared.EventXPGained))

	state := env.store.states[shared.UserID(testUser)]
	require.NotNil(t, state)
	assert.Equal(t, shared.XP(100), state.TotalXP)
	require.NotNil(t, state.LastActivityAt, "a satisfied quest counts as activity")
	assert.Equal(t, now, *state.LastActivityAt)
}

func TestCompleteQuest_PartialAwardsScaledXP(t *testing.T) {
	now := time.Date(2026, 8, 1, 20, 0, 0, 0, time.UTC)
	env := newCompleteQuestEnv(stepsTemplate())

	result, err := env.handler.Handle(context.Background(), CompleteQuestCommand{
		UserID:       testUser,
		TemplateID:   "steps-daily",
		Period:       shared.DailyPeriod("2026-08-01"),
		Metrics:      requirement.Metrics{"steps": requirement.NumberValue(7000)},
		CurrentValue: 7000,
		Timestamp:    now,
	})
	require.NoError(t, err)

	assert.False(t, result.Verdict.Satisfied)
	assert.True(t, result.Partial)
	assert.Equal(t, int64(70), result.XPAwarded, "70% of target scales the base XP")
	assert.Equal(t, quest.StatusCompleted, result.Instance.Status)
	assert.True(t, result.Instance.Partial)
	assert.True(t, env.publisher.has(shared.EventQuestPartial))
}

func TestCompleteQuest_BelowPartialThresholdFails(t *testing.T) {
	now := time.Date(2026, 8, 1, 20, 0, 0, 0, time.UTC)
	env := newCompleteQuestEnv(stepsTemplate())

	result, err := env.handler.Handle(context.Background(), CompleteQuestCommand{
		UserID:     testUser,
		TemplateID: "steps-daily",
		Period:     shared.DailyPeriod("2026-08-01"),
		Metrics:    requirement.Metrics{"steps": requirement.NumberValue(2000)},
		Timestamp:  now,
	})
	require.NoError(t, err)

	assert.False(t, result.Partial)
	assert.Equal(t, int64(0), result.XPAwarded)
	assert.Equal(t, quest.StatusFailed, result.Instance.Status)
	assert.True(t, env.publisher.has(shared.EventQuestFailed))
	assert.False(t, env.publisher.has(shared.EventXPGained), "a failed quest awards nothing")
}

func TestCompleteQuest_NoPartialWithoutTemplateSupport(t *testing.T) {
	now := time.Date(2026, 8, 1, 20, 0, 0, 0, time.UTC)
	tmpl := stepsTemplate()
	tmpl.AllowPartial = false
	env := newCompleteQuestEnv(tmpl)

	result, err := env.handler.Handle(context.Background(), CompleteQuestCommand{
		UserID:     testUser,
		TemplateID: "steps-daily",
		Period:     shared.DailyPeriod("2026-08-01"),
		Metrics:    requirement.Metrics{"steps": requirement.NumberValue(9000)},
		Timestamp:  now,
	})
	require.NoError(t, err)

	assert.Equal(t, quest.StatusFailed, result.Instance.Status, "90% without AllowPartial is a failure")
	assert.Equal(t, int64(0), result.XPAwarded)
}

func TestCompleteQuest_InstanceCreatedWithAdaptedTarget(t *testing.T) {
	now := time.Date(2026, 8, 1, 20, 0, 0, 0, time.UTC)
	env := newCompleteQuestEnv(stepsTemplate())

	target := quest.NewAdaptedTarget(shared.UserID(testUser), "steps-daily", 10000, now)
	target.AdaptedTarget = 8000
	require.NoError(t, env.targets.Save(context.Background(), target))

	result, err := env.handler.Handle(context.Background(), CompleteQuestCommand{
		UserID:       testUser,
		TemplateID:   "steps-daily",
		Period:       shared.DailyPeriod("2026-08-01"),
		Metrics:      requirement.Metrics{"steps": requirement.NumberValue(12000)},
		CurrentValue: 12000,
		Timestamp:    now,
	})
	require.NoError(t, err)

	assert.Equal(t, 8000.0, result.Instance.TargetValue, "a personalized target replaces the base one")
}

func TestCompleteQuest_FinalizedInstanceRejected(t *testing.T) {
	now := time.Date(2026, 8, 1, 20, 0, 0, 0, time.UTC)
	tmpl := stepsTemplate()
	env := newCompleteQuestEnv(tmpl)

	inst, err := quest.NewInstance(*tmpl, shared.UserID(testUser), shared.DailyPeriod("2026-08-01"), 0, now)
	require.NoError(t, err)
	require.NoError(t, inst.Complete(1.0, 100, "ev-1", now))
	require.NoError(t, env.instances.Save(context.Background(), inst))

	_, err = env.handler.Handle(context.Background(), CompleteQuestCommand{
		UserID:     testUser,
		TemplateID: "steps-daily",
		Period:     shared.DailyPeriod("2026-08-01"),
		Metrics:    requirement.Metrics{"steps": requirement.NumberValue(12000)},
		Timestamp:  now,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInstanceFinalized)
}

func TestCompleteQuest_DebuffedAwardIsHalved(t *testing.T) {
	now := time.Date(2026, 8, 1, 20, 0, 0, 0, time.UTC)
	env := newCompleteQuestEnv(stepsTemplate())

	state, err := env.store.FindOrCreate(context.Background(), shared.UserID(testUser), now)
	require.NoError(t, err)
	until := now.Add(6 * time.Hour)
	state.DebuffActiveUntil = &until

	result, err := env.handler.Handle(context.Background(), CompleteQuestCommand{
		UserID:     testUser,
		TemplateID: "steps-daily",
		Period:     shared.DailyPeriod("2026-08-01"),
		Metrics:    requirement.Metrics{"steps": requirement.NumberValue(12000)},
		Timestamp:  now,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(50), result.XPAwarded, "the instance records the post-penalty amount")
	assert.Equal(t, int64(50), result.Instance.XPAwarded)
}
