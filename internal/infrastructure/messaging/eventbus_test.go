package messaging

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

type countingHandler struct {
	mu     sync.Mutex
	name   string
	events []shared.Event
	err    error
}

func (h *countingHandler) Handle(event shared.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *countingHandler) Name() string { return h.name }

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false, EnableMetrics: true})
}

func TestInMemoryEventBus_RoutesByEventType(t *testing.T) {
	bus := newSyncBus()
	defer func() { _ = bus.Close() }()

	levelUps := &countingHandler{name: "level_ups"}
	streaks := &countingHandler{name: "streaks"}
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, levelUps))
	require.NoError(t, bus.Subscribe(shared.EventStreakUpdated, streaks))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2, 150)))

	assert.Equal(t, 1, levelUps.count())
	assert.Equal(t, 0, streaks.count(), "handlers only see their subscribed type")
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := newSyncBus()
	defer func() { _ = bus.Close() }()

	all := &countingHandler{name: "audit"}
	require.NoError(t, bus.SubscribeAll(all))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2, 150)))
	require.NoError(t, bus.Publish(shared.NewStreakBrokenEvent("user-1", 5, "2026-08-10")))

	assert.Equal(t, 2, all.count())
}

func TestInMemoryEventBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := newSyncBus()
	defer func() { _ = bus.Close() }()

	failing := &countingHandler{name: "failing", err: errors.New("boom")}
	healthy := &countingHandler{name: "healthy"}
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, failing))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, healthy))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2, 150)))

	assert.Equal(t, 1, healthy.count(), "one failing handler never blocks the rest")
}

func TestInMemoryEventBus_AsyncDeliveryCompletesOnClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 4})

	h := &countingHandler{name: "async"}
	require.NoError(t, bus.Subscribe(shared.EventXPGained, h))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(shared.NewXPGainedEvent("user-1", "ev", "quest", "", 10, 10, 10)))
	}

	require.Eventually(t, func() bool { return h.count() == 20 },
		time.Second, 5*time.Millisecond, "async delivery drains through the worker pool")
	require.NoError(t, bus.Close())
}

func TestInMemoryEventBus_ClosedBusRejectsOperations(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2, 150))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventLevelUp, &countingHandler{name: "late"})
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryEventBus_NilArgumentsRejected(t *testing.T) {
	bus := newSyncBus()
	defer func() { _ = bus.Close() }()

	assert.ErrorIs(t, bus.Subscribe(shared.EventLevelUp, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}

func TestInMemoryEventBus_MetricsTrackExecutions(t *testing.T) {
	bus := newSyncBus()
	defer func() { _ = bus.Close() }()

	require.NoError(t, bus.Subscribe(shared.EventLevelUp, &countingHandler{name: "ok"}))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, &countingHandler{name: "bad", err: errors.New("boom")}))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2, 150)))

	snapshot := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snapshot.TotalPublished)
	assert.Equal(t, int64(2), snapshot.TotalHandlerExecs)
	assert.InDelta(t, 0.5, snapshot.HandlerSuccessRate, 0.001)
}
