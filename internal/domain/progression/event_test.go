package progression

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

const testUserID = shared.UserID("11111111-2222-3333-4444-555555555555")

func buildChain(t *testing.T, amounts []int64) []XPEvent {
	t.Helper()

	calc := NewDefaultCalculator()
	state := NewUserProgression(testUserID, time.Now())
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	events := make([]XPEvent, 0, len(amounts))
	for i, amount := range amounts {
		ev, err := NextEvent(state, calc, RecordInput{
			Source:     "quest",
			SourceID:   "steps-daily",
			BaseAmount: amount,
		}, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		state.ApplyLedgerEvent(ev, ev.CreatedAt)
		events = append(events, ev)
	}
	return events
}

func TestComputeHash_Deterministic(t *testing.T) {
	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	h1 := ComputeHash(testUserID, 125, 125, GenesisHash, createdAt)
	h2 := ComputeHash(testUserID, 125, 125, GenesisHash, createdAt)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "blake2b-256 hex digest")

	// Any field change must change the hash.
	assert.NotEqual(t, h1, ComputeHash(testUserID, 126, 125, GenesisHash, createdAt))
	assert.NotEqual(t, h1, ComputeHash(testUserID, 125, 126, GenesisHash, createdAt))
	assert.NotEqual(t, h1, ComputeHash(testUserID, 125, 125, "other", createdAt))
	assert.NotEqual(t, h1, ComputeHash(testUserID, 125, 125, GenesisHash, createdAt.Add(time.Nanosecond)))
}

func TestNextEvent(t *testing.T) {
	calc := NewDefaultCalculator()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	state := NewUserProgression(testUserID, now)

	ev, err := NextEvent(state, calc, RecordInput{
		Source:     "quest",
		SourceID:   "steps-daily",
		BaseAmount: 100,
		Modifiers: []Modifier{
			{Type: ModifierBonus, Multiplier: 1.25},
			{Type: ModifierPenalty, Multiplier: 0.5},
		},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, int64(100), ev.BaseAmount)
	assert.Equal(t, int64(62), ev.FinalAmount)
	assert.Equal(t, int64(0), ev.TotalXPBefore)
	assert.Equal(t, int64(62), ev.TotalXPAfter)
	assert.Equal(t, shared.Level(1), ev.LevelBefore)
	assert.Equal(t, shared.Level(1), ev.LevelAfter)
	assert.Equal(t, GenesisHash, ev.PreviousHash)
	assert.True(t, ev.VerifyHash())
	assert.NotEmpty(t, ev.ID)
}

func TestNextEvent_LevelUp(t *testing.T) {
	calc := NewDefaultCalculator()
	now := time.Now().UTC()
	state := NewUserProgression(testUserID, now)

	ev, err := NextEvent(state, calc, RecordInput{Source: "quest", BaseAmount: 150}, now)
	require.NoError(t, err)
	assert.Equal(t, shared.Level(1), ev.LevelBefore)
	assert.Equal(t, shared.Level(2), ev.LevelAfter)
}

func TestNextEvent_RemovalFloorsAtZero(t *testing.T) {
	calc := NewDefaultCalculator()
	now := time.Now().UTC()
	state := NewUserProgression(testUserID, now)
	state.TotalXP = 50

	ev, err := NextEvent(state, calc, RecordInput{Source: "correction", BaseAmount: -80}, now)
	require.NoError(t, err)

	assert.Equal(t, int64(-80), ev.FinalAmount)
	assert.Equal(t, int64(50), ev.TotalXPBefore)
	assert.Equal(t, int64(0), ev.TotalXPAfter, "removal beyond current total clamps to zero")
	assert.True(t, ev.Floored())
}

func TestNextEvent_RemovalDropsLevel(t *testing.T) {
	calc := NewDefaultCalculator()
	now := time.Now().UTC()
	state := NewUserProgression(testUserID, now)
	state.TotalXP = 400
	state.Level = calc.LevelOf(400)

	ev, err := NextEvent(state, calc, RecordInput{Source: "correction", BaseAmount: -350}, now)
	require.NoError(t, err)
	assert.Equal(t, shared.Level(3), ev.LevelBefore)
	assert.Equal(t, shared.Level(1), ev.LevelAfter, "level is always recomputed from the new total")
}

func TestNextEvent_Rejections(t *testing.T) {
	calc := NewDefaultCalculator()
	now := time.Now().UTC()
	state := NewUserProgression(testUserID, now)

	_, err := NextEvent(state, calc, RecordInput{Source: "quest", BaseAmount: 0}, now)
	assert.True(t, errors.Is(err, shared.ErrZeroBaseAmount))

	_, err = NextEvent(state, calc, RecordInput{
		Source:     "quest",
		BaseAmount: 100,
		Modifiers:  []Modifier{{Type: ModifierBonus, Multiplier: -1}},
	}, now)
	assert.True(t, shared.IsValidation(err))
}

func TestVerifyChain_Valid(t *testing.T) {
	events := buildChain(t, []int64{100, 50, -30, 200})

	report := VerifyChain(testUserID, events)
	assert.True(t, report.Valid)
	assert.Equal(t, 4, report.Events)
	assert.NoError(t, report.Err())
}

func TestVerifyChain_Empty(t *testing.T) {
	report := VerifyChain(testUserID, nil)
	assert.True(t, report.Valid)
	assert.NoError(t, report.Err())
}

func TestVerifyChain_TamperedAmount(t *testing.T) {
	events := buildChain(t, []int64{100, 50, 200})
	events[1].FinalAmount = 5000

	report := VerifyChain(testUserID, events)
	assert.False(t, report.Valid)
	assert.Equal(t, events[1].ID, report.BadID)
	assert.True(t, errors.Is(report.Err(), shared.ErrLedgerCorrupted))
}

func TestVerifyChain_BrokenLink(t *testing.T) {
	events := buildChain(t, []int64{100, 50, 200})
	events[2].PreviousHash = "forged"

	report := VerifyChain(testUserID, events)
	assert.False(t, report.Valid)
	assert.Equal(t, events[2].ID, report.BadID)
}

func TestVerifyChain_MissingEvent(t *testing.T) {
	events := buildChain(t, []int64{100, 50, 200})
	truncated := []XPEvent{events[0], events[2]}

	report := VerifyChain(testUserID, truncated)
	assert.False(t, report.Valid, "a removed middle event breaks the link")
	assert.Equal(t, events[2].ID, report.BadID)
}
