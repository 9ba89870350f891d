package command

import (
	"context"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/quest"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// In-memory fakes for the repository ports. The fake store mirrors the
// contracts the handlers rely on: AppendEvent revalidates the chain tip,
// SaveDaySummary enforces (user, day) uniqueness.

const testUser = "b7e2a1c4-3d5f-4a6b-8c9d-0e1f2a3b4c5d"

type fakeStore struct {
	states    map[shared.UserID]*progression.UserProgression
	events    map[shared.UserID][]progression.XPEvent
	summaries map[string]progression.DaySummary

	appendErr error
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states:    make(map[shared.UserID]*progression.UserProgression),
		events:    make(map[shared.UserID][]progression.XPEvent),
		summaries: make(map[string]progression.DaySummary),
	}
}

// ─── LedgerRepository ───

func (s *fakeStore) AppendEvent(_ context.Context, ev progression.XPEvent, state *progression.UserProgression) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	tip := progression.GenesisHash
	if chain := s.events[ev.UserID]; len(chain) > 0 {
		tip = chain[len(chain)-1].Hash
	}
	if ev.PreviousHash != tip {
		return shared.ErrChainTipMoved
	}
	s.events[ev.UserID] = append(s.events[ev.UserID], ev)
	s.states[state.UserID] = state
	return nil
}

func (s *fakeStore) LatestHash(_ context.Context, userID shared.UserID) (string, error) {
	chain := s.events[userID]
	if len(chain) == 0 {
		return progression.GenesisHash, nil
	}
	return chain[len(chain)-1].Hash, nil
}

func (s *fakeStore) ListEvents(_ context.Context, userID shared.UserID) ([]progression.XPEvent, error) {
	return s.events[userID], nil
}

func (s *fakeStore) ListEventsSince(_ context.Context, userID shared.UserID, since time.Time) ([]progression.XPEvent, error) {
	var out []progression.XPEvent
	for _, ev := range s.events[userID] {
		if ev.CreatedAt.After(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ─── ProgressionRepository ───

func (s *fakeStore) Find(_ context.Context, userID shared.UserID) (*progression.UserProgression, error) {
	state, ok := s.states[userID]
	if !ok {
		return nil, shared.ErrProgressionNotFound
	}
	return state, nil
}

func (s *fakeStore) FindOrCreate(_ context.Context, userID shared.UserID, now time.Time) (*progression.UserProgression, error) {
	if state, ok := s.states[userID]; ok {
		return state, nil
	}
	state := progression.NewUserProgression(userID, now)
	s.states[userID] = state
	return state, nil
}

func (s *fakeStore) Save(_ context.Context, p *progression.UserProgression) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.states[p.UserID] = p
	return nil
}

func (s *fakeStore) SaveDaySummary(_ context.Context, sum progression.DaySummary) error {
	key := sum.UserID.String() + "|" + sum.Day
	if _, ok := s.summaries[key]; ok {
		return shared.ErrDayAlreadyClosed
	}
	s.summaries[key] = sum
	return nil
}

func (s *fakeStore) FindDaySummary(_ context.Context, userID shared.UserID, day string) (*progression.DaySummary, error) {
	sum, ok := s.summaries[userID.String()+"|"+day]
	if !ok {
		return nil, shared.NewDomainError("progression", "FindDaySummary", shared.ErrNotFound, "day summary not found")
	}
	return &sum, nil
}

func (s *fakeStore) ListAbsentSince(_ context.Context, cutoff time.Time, limit int) ([]*progression.UserProgression, error) {
	var out []*progression.UserProgression
	for _, state := range s.states {
		if state.ReturnState != progression.ReturnInactive {
			continue
		}
		last := state.UpdatedAt
		if state.LastActivityAt != nil {
			last = *state.LastActivityAt
		}
		if last.Before(cutoff) {
			out = append(out, state)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) ListUserIDs(_ context.Context, limit, offset int) ([]shared.UserID, error) {
	ids := make([]shared.UserID, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// ─── Quest repositories ───

type fakeTemplates struct {
	byID map[shared.TemplateID]*quest.Template
}

func newFakeTemplates(templates ...*quest.Template) *fakeTemplates {
	f := &fakeTemplates{byID: make(map[shared.TemplateID]*quest.Template)}
	for _, tmpl := range templates {
		f.byID[tmpl.ID] = tmpl
	}
	return f
}

func (f *fakeTemplates) Find(_ context.Context, id shared.TemplateID) (*quest.Template, error) {
	tmpl, ok := f.byID[id]
	if !ok {
		return nil, shared.ErrTemplateNotFound
	}
	return tmpl, nil
}

func (f *fakeTemplates) List(_ context.Context) ([]*quest.Template, error) {
	out := make([]*quest.Template, 0, len(f.byID))
	for _, tmpl := range f.byID {
		out = append(out, tmpl)
	}
	return out, nil
}

func (f *fakeTemplates) ListCore(_ context.Context) ([]*quest.Template, error) {
	var out []*quest.Template
	for _, tmpl := range f.byID {
		if tmpl.Core {
			out = append(out, tmpl)
		}
	}
	return out, nil
}

func (f *fakeTemplates) Save(_ context.Context, tmpl *quest.Template) error {
	f.byID[tmpl.ID] = tmpl
	return nil
}

type fakeInstances struct {
	byID    map[string]*quest.Instance
	saveErr error
}

func newFakeInstances() *fakeInstances {
	return &fakeInstances{byID: make(map[string]*quest.Instance)}
}

func (f *fakeInstances) Find(_ context.Context, id string) (*quest.Instance, error) {
	inst, ok := f.byID[id]
	if !ok {
		return nil, shared.ErrInstanceNotFound
	}
	return inst, nil
}

func (f *fakeInstances) FindByPeriod(_ context.Context, userID shared.UserID, templateID shared.TemplateID, period shared.Period) (*quest.Instance, error) {
	for _, inst := range f.byID {
		if inst.UserID == userID && inst.TemplateID == templateID && inst.Period == period {
			return inst, nil
		}
	}
	return nil, shared.ErrInstanceNotFound
}

func (f *fakeInstances) ListByUserPeriod(_ context.Context, userID shared.UserID, period shared.Period) ([]*quest.Instance, error) {
	var out []*quest.Instance
	for _, inst := range f.byID {
		if inst.UserID == userID && inst.Period == period {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (f *fakeInstances) ListHistory(_ context.Context, userID shared.UserID, templateID shared.TemplateID, rng shared.TimeRange) ([]*quest.Instance, error) {
	var out []*quest.Instance
	for _, inst := range f.byID {
		if inst.UserID != userID || inst.TemplateID != templateID || !inst.Status.Final() {
			continue
		}
		if inst.CompletedAt != nil && rng.Contains(*inst.CompletedAt) {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (f *fakeInstances) Save(_ context.Context, inst *quest.Instance) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.byID[inst.ID] = inst
	return nil
}

type fakeTargets struct {
	byKey map[string]*quest.AdaptedTarget
}

func newFakeTargets() *fakeTargets {
	return &fakeTargets{byKey: make(map[string]*quest.AdaptedTarget)}
}

func targetKey(userID shared.UserID, templateID shared.TemplateID) string {
	return userID.String() + "|" + templateID.String()
}

func (f *fakeTargets) Find(_ context.Context, userID shared.UserID, templateID shared.TemplateID) (*quest.AdaptedTarget, error) {
	target, ok := f.byKey[targetKey(userID, templateID)]
	if !ok {
		return nil, shared.ErrTargetNotFound
	}
	return target, nil
}

func (f *fakeTargets) FindOrCreate(_ context.Context, userID shared.UserID, templateID shared.TemplateID, baseTarget float64, now time.Time) (*quest.AdaptedTarget, error) {
	key := targetKey(userID, templateID)
	if target, ok := f.byKey[key]; ok {
		return target, nil
	}
	target := quest.NewAdaptedTarget(userID, templateID, baseTarget, now)
	f.byKey[key] = target
	return target, nil
}

func (f *fakeTargets) Save(_ context.Context, target *quest.AdaptedTarget) error {
	f.byKey[targetKey(target.UserID, target.TemplateID)] = target
	return nil
}

// ─── Event capture ───

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) count(eventType shared.EventType) int {
	n := 0
	for _, event := range p.events {
		if event.EventType() == eventType {
			n++
		}
	}
	return n
}

func (p *capturingPublisher) has(eventType shared.EventType) bool {
	return p.count(eventType) > 0
}
