package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

func TestGetProgression_SnapshotFromStore(t *testing.T) {
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	state := progression.NewUserProgression(shared.UserID(testUser), now)
	state.TotalXP = 150
	state.Level = 2
	state.CurrentStreak = 4
	state.LongestStreak = 9

	repos := newFakeProgressions(state)
	h := NewGetProgressionHandler(repos, progression.NewDefaultCalculator(), nil)

	snapshot, err := h.Handle(context.Background(), GetProgressionQuery{UserID: testUser})
	require.NoError(t, err)

	assert.Equal(t, 2, snapshot.Level)
	assert.Equal(t, "Novice", snapshot.LevelTitle)
	assert.Equal(t, int64(150), snapshot.TotalXP)
	assert.Equal(t, 4, snapshot.CurrentStreak)
	assert.Equal(t, 9, snapshot.LongestStreak)
	assert.Equal(t, string(progression.ReturnInactive), snapshot.ReturnState)
	assert.False(t, snapshot.DebuffActive)
}

func TestGetProgression_CacheHitSkipsStore(t *testing.T) {
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	repos := newFakeProgressions()
	cache := newFakeCache()
	cache.snapshots[shared.UserID(testUser)] = &ProgressionSnapshot{
		UserID: testUser, Level: 3, TotalXP: 500, AsOf: now,
	}

	h := NewGetProgressionHandler(repos, progression.NewDefaultCalculator(), cache)

	snapshot, err := h.Handle(context.Background(), GetProgressionQuery{UserID: testUser})
	require.NoError(t, err)

	assert.Equal(t, 3, snapshot.Level)
	assert.Equal(t, 0, repos.finds, "a cache hit never touches the store")
}

func TestGetProgression_CacheMissFillsCache(t *testing.T) {
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	state := progression.NewUserProgression(shared.UserID(testUser), now)
	repos := newFakeProgressions(state)
	cache := newFakeCache()

	h := NewGetProgressionHandler(repos, progression.NewDefaultCalculator(), cache)

	_, err := h.Handle(context.Background(), GetProgressionQuery{UserID: testUser})
	require.NoError(t, err)

	assert.Equal(t, 1, repos.finds)
	assert.Equal(t, 1, cache.sets)
}

func TestGetProgression_SkipCacheReadsStore(t *testing.T) {
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	state := progression.NewUserProgression(shared.UserID(testUser), now)
	state.TotalXP = 50
	repos := newFakeProgressions(state)
	cache := newFakeCache()
	cache.snapshots[shared.UserID(testUser)] = &ProgressionSnapshot{
		UserID: testUser, Level: 99, TotalXP: 999999, AsOf: now,
	}

	h := NewGetProgressionHandler(repos, progression.NewDefaultCalculator(), cache)

	snapshot, err := h.Handle(context.Background(), GetProgressionQuery{UserID: testUser, SkipCache: true})
	require.NoError(t, err)

	assert.Equal(t, int64(50), snapshot.TotalXP, "SkipCache bypasses a stale entry")
	assert.Equal(t, 1, repos.finds)
}

func TestGetProgression_ExpiredDebuffClearedOnCachedSnapshot(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	cache := newFakeCache()
	cache.snapshots[shared.UserID(testUser)] = &ProgressionSnapshot{
		UserID:       testUser,
		DebuffActive: true,
		DebuffUntil:  &past,
	}

	h := NewGetProgressionHandler(newFakeProgressions(), progression.NewDefaultCalculator(), cache)

	snapshot, err := h.Handle(context.Background(), GetProgressionQuery{UserID: testUser})
	require.NoError(t, err)

	assert.False(t, snapshot.DebuffActive, "lazy expiry applies to cached reads too")
}

func TestGetProgression_UnknownUser(t *testing.T) {
	h := NewGetProgressionHandler(newFakeProgressions(), progression.NewDefaultCalculator(), nil)

	_, err := h.Handle(context.Background(), GetProgressionQuery{UserID: testUser})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}
