package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

func newRecordXPHandler(store *fakeStore, publisher *capturingPublisher) *RecordXPEventHandler {
	calc := progression.NewDefaultCalculator()
	return NewRecordXPEventHandler(store, store, calc, publisher, DefaultRecordXPEventHandlerConfig())
}

func TestRecordXPEvent_AwardAppendsToChain(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	publisher := &capturingPublisher{}
	h := newRecordXPHandler(store, publisher)

	result, err := h.Handle(context.Background(), RecordXPEventCommand{
		UserID:     testUser,
		Source:     SourceQuest,
		SourceID:   "inst-1",
		BaseAmount: 50,
		Timestamp:  now,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(50), result.Event.FinalAmount)
	assert.Equal(t, int64(50), result.TotalXP)
	assert.Equal(t, 1, result.NewLevel)
	assert.False(t, result.LeveledUp)
	assert.Equal(t, progression.GenesisHash, result.Event.PreviousHash)
	assert.True(t, result.Event.VerifyHash())

	state := store.states[shared.UserID(testUser)]
	require.NotNil(t, state)
	assert.Equal(t, shared.XP(50), state.TotalXP)
	assert.Equal(t, result.Event.Hash, state.LastEventHash)

	assert.True(t, publisher.has(shared.EventXPGained))
	assert.False(t, publisher.has(shared.EventLevelUp))
}

func TestRecordXPEvent_SecondEventChainsOnFirst(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	h := newRecordXPHandler(store, &capturingPublisher{})

	first, err := h.Handle(context.Background(), RecordXPEventCommand{
		UserID: testUser, Source: SourceQuest, BaseAmount: 30, Timestamp: now,
	})
	require.NoError(t, err)

	second, err := h.Handle(context.Background(), RecordXPEventCommand{
		UserID: testUser, Source: SourceQuest, BaseAmount: 20, Timestamp: now.Add(time.Minute),
	})
	require.NoError(t, err)

	assert.Equal(t, first.Event.Hash, second.Event.PreviousHash)
	assert.Equal(t, int64(50), second.TotalXP)

	report := progression.VerifyChain(shared.UserID(testUser), store.events[shared.UserID(testUser)])
	assert.True(t, report.Valid)
	assert.Equal(t, 2, report.Events)
}

func TestRecordXPEvent_LevelUpPublishesEvent(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	publisher := &capturingPublisher{}
	h := newRecordXPHandler(store, publisher)

	// Level 2 threshold is 100 total XP on the default curve.
	result, err := h.Handle(context.Background(), RecordXPEventCommand{
		UserID: testUser, Source: SourceQuest, BaseAmount: 150, Timestamp: now,
	})
	require.NoError(t, err)

	assert.True(t, result.LeveledUp)
	assert.Equal(t, 2, result.NewLevel)
	assert.Equal(t, shared.Level(1), result.Event.LevelBefore)
	assert.Equal(t, shared.Level(2), result.Event.LevelAfter)
	assert.True(t, publisher.has(shared.EventLevelUp))
}

func TestRecordXPEvent_ActiveDebuffHalvesAward(t *testing.T) {
	now := time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	state := progression.NewUserProgression(shared.UserID(testUser), now)
	until := now.Add(12 * time.Hour)
	state.DebuffActiveUntil = &until
	store.states[state.UserID] = state

	h := newRecordXPHandler(store, &capturingPublisher{})

	result, err := h.Handle(context.Background(), RecordXPEventCommand{
		UserID: testUser, Source: SourceQuest, BaseAmount: 101, Timestamp: now,
	})
	require.NoError(t, err)

	assert.True(t, result.DebuffPenaltyApplied)
	assert.Equal(t, int64(50), result.Event.FinalAmount, "floor(101 * 0.5)")
	require.Len(t, result.Event.Modifiers, 1)
	assert.Equal(t, progression.ModifierPenalty, result.Event.Modifiers[0].Type)
}

func TestRecordXPEvent_DebuffDoesNotTaxRemovals(t *testing.T) {
	now := time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	state := progression.NewUserProgression(shared.UserID(testUser), now)
	state.TotalXP = 200
	until := now.Add(12 * time.Hour)
	state.DebuffActiveUntil = &until
	store.states[state.UserID] = state

	h := newRecordXPHandler(store, &capturingPublisher{})

	result, err := h.Handle(context.Background(), RecordXPEventCommand{
		UserID: testUser, Source: SourceQuestReset, BaseAmount: -80, Timestamp: now,
	})
	require.NoError(t, err)

	assert.False(t, result.DebuffPenaltyApplied, "penalties apply to awards only")
	assert.Equal(t, int64(-80), result.Event.FinalAmount)
	assert.Equal(t, int64(120), result.TotalXP)
}

func TestRecordXPEvent_RemovalFloorsAtZero(t *testing.T) {
	now := time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	state := progression.NewUserProgression(shared.UserID(testUser), now)
	state.TotalXP = 40
	store.states[state.UserID] = state

	publisher := &capturingPublisher{}
	h := newRecordXPHandler(store, publisher)

	result, err := h.Handle(context.Background(), RecordXPEventCommand{
		UserID: testUser, Source: SourceCorrection, BaseAmount: -100, Timestamp: now,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.TotalXP)
	assert.True(t, result.Event.Floored())
	assert.True(t, publisher.has(shared.EventXPRemoved))
	assert.False(t, publisher.has(shared.EventXPGained))
}

func TestRecordXPEvent_ZeroBaseAmountRejected(t *testing.T) {
	h := newRecordXPHandler(newFakeStore(), &capturingPublisher{})

	_, err := h.Handle(context.Background(), RecordXPEventCommand{
		UserID: testUser, Source: SourceQuest, BaseAmount: 0,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrZeroBaseAmount)
}

func TestRecordXPEvent_ConcurrencyConflictSurfaces(t *testing.T) {
	now := time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.appendErr = shared.ErrChainTipMoved

	publisher := &capturingPublisher{}
	h := newRecordXPHandler(store, publisher)

	_, err := h.Handle(context.Background(), RecordXPEventCommand{
		UserID: testUser, Source: SourceQuest, BaseAmount: 10, Timestamp: now,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.True(t, shared.IsRetryable(err))
	assert.Empty(t, publisher.events, "nothing is published when the append fails")
}
