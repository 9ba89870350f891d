package query

import (
	"context"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

const testUser = "b7e2a1c4-3d5f-4a6b-8c9d-0e1f2a3b4c5d"

type fakeProgressions struct {
	states map[shared.UserID]*progression.UserProgression
	finds  int
}

func newFakeProgressions(states ...*progression.UserProgression) *fakeProgressions {
	f := &fakeProgressions{states: make(map[shared.UserID]*progression.UserProgression)}
	for _, state := range states {
		f.states[state.UserID] = state
	}
	return f
}

func (f *fakeProgressions) Find(_ context.Context, userID shared.UserID) (*progression.UserProgression, error) {
	f.finds++
	state, ok := f.states[userID]
	if !ok {
		return nil, shared.ErrProgressionNotFound
	}
	return state, nil
}

func (f *fakeProgressions) FindOrCreate(ctx context.Context, userID shared.UserID, now time.Time) (*progression.UserProgression, error) {
	if state, ok := f.states[userID]; ok {
		return state, nil
	}
	state := progression.NewUserProgression(userID, now)
	f.states[userID] = state
	return state, nil
}

func (f *fakeProgressions) Save(_ context.Context, p *progression.UserProgression) error {
	f.states[p.UserID] = p
	return nil
}

func (f *fakeProgressions) SaveDaySummary(context.Context, progression.DaySummary) error { return nil }

func (f *fakeProgressions) FindDaySummary(context.Context, shared.UserID, string) (*progression.DaySummary, error) {
	return nil, shared.NewDomainError("progression", "FindDaySummary", shared.ErrNotFound, "day summary not found")
}

func (f *fakeProgressions) ListAbsentSince(context.Context, time.Time, int) ([]*progression.UserProgression, error) {
	return nil, nil
}

func (f *fakeProgressions) ListUserIDs(context.Context, int, int) ([]shared.UserID, error) {
	return nil, nil
}

type fakeLedger struct {
	events map[shared.UserID][]progression.XPEvent
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{events: make(map[shared.UserID][]progression.XPEvent)}
}

func (f *fakeLedger) AppendEvent(_ context.Context, ev progression.XPEvent, _ *progression.UserProgression) error {
	f.events[ev.UserID] = append(f.events[ev.UserID], ev)
	return nil
}

func (f *fakeLedger) LatestHash(_ context.Context, userID shared.UserID) (string, error) {
	chain := f.events[userID]
	if len(chain) == 0 {
		return progression.GenesisHash, nil
	}
	return chain[len(chain)-1].Hash, nil
}

func (f *fakeLedger) ListEvents(_ context.Context, userID shared.UserID) ([]progression.XPEvent, error) {
	return f.events[userID], nil
}

func (f *fakeLedger) ListEventsSince(_ context.Context, userID shared.UserID, since time.Time) ([]progression.XPEvent, error) {
	var out []progression.XPEvent
	for _, ev := range f.events[userID] {
		if ev.CreatedAt.After(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakeCache struct {
	snapshots map[shared.UserID]*ProgressionSnapshot
	sets      int
	deletes   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{snapshots: make(map[shared.UserID]*ProgressionSnapshot)}
}

func (c *fakeCache) Get(_ context.Context, userID shared.UserID) (*ProgressionSnapshot, error) {
	snapshot, ok := c.snapshots[userID]
	if !ok {
		return nil, nil
	}
	return snapshot, nil
}

func (c *fakeCache) Set(_ context.Context, snapshot *ProgressionSnapshot) error {
	c.sets++
	c.snapshots[shared.UserID(snapshot.UserID)] = snapshot
	return nil
}

func (c *fakeCache) Delete(_ context.Context, userID shared.UserID) error {
	c.deletes++
	delete(c.snapshots, userID)
	return nil
}
