// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Progression events
	EventXPGained      EventType = "progression.xp_gained"
	EventXPRemoved     EventType = "progression.xp_removed"
	EventLevelUp       EventType = "progression.level_up"
	EventStreakUpdated EventType = "progression.streak_updated"
	EventStreakBroken  EventType = "progression.streak_broken"
	EventDebuffApplied EventType = "progression.debuff_applied"
	EventDebuffCleared EventType = "progression.debuff_cleared"
	EventDayClosed     EventType = "progression.day_closed"

	// Return protocol events
	EventReturnOffered   EventType = "return.offered"
	EventReturnAccepted  EventType = "return.accepted"
	EventReturnDeclined  EventType = "return.declined"
	EventReturnAdvanced  EventType = "return.advanced"
	EventReturnCompleted EventType = "return.completed"

	// Quest events
	EventQuestCompleted EventType = "quest.completed"
	EventQuestPartial   EventType = "quest.partially_completed"
	EventQuestFailed    EventType = "quest.failed"
	EventQuestReset     EventType = "quest.reset"

	// Target events
	EventTargetAdapted  EventType = "target.adapted"
	EventTargetOverride EventType = "target.manual_override"

	// System events
	EventChainVerified  EventType = "system.chain_verified"
	EventChainCorrupted EventType = "system.chain_corrupted"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progression Events
// ═══════════════════════════════════════════════════════════════════════════

// XPGainedEvent is emitted for every ledger append with a positive final amount.
type XPGainedEvent struct {
	BaseEvent
	EventID     string `json:"event_id"`
	Source      string `json:"source"`
	SourceID    string `json:"source_id"`
	BaseAmount  int64  `json:"base_amount"`
	FinalAmount int64  `json:"final_amount"`
	TotalXP     int64  `json:"total_xp"`
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"event_id":     e.EventID,
		"source":       e.Source,
		"source_id":    e.SourceID,
		"base_amount":  e.BaseAmount,
		"final_amount": e.FinalAmount,
		"total_xp":     e.TotalXP,
	}
}

// NewXPGainedEvent creates a new XPGainedEvent.
func NewXPGainedEvent(userID, eventID, source, sourceID string, baseAmount, finalAmount, totalXP int64) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent:   NewBaseEvent(EventXPGained, userID),
		EventID:     eventID,
		Source:      source,
		SourceID:    sourceID,
		BaseAmount:  baseAmount,
		FinalAmount: finalAmount,
		TotalXP:     totalXP,
	}
}

// XPRemovedEvent is emitted for every ledger append with a negative final amount.
type XPRemovedEvent struct {
	BaseEvent
	EventID     string `json:"event_id"`
	Source      string `json:"source"`
	FinalAmount int64  `json:"final_amount"`
	TotalXP     int64  `json:"total_xp"`
	Floored     bool   `json:"floored"`
}

// Payload implements Event interface.
func (e XPRemovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"event_id":     e.EventID,
		"source":       e.Source,
		"final_amount": e.FinalAmount,
		"total_xp":     e.TotalXP,
		"floored":      e.Floored,
	}
}

// NewXPRemovedEvent creates a new XPRemovedEvent.
func NewXPRemovedEvent(userID, eventID, source string, finalAmount, totalXP int64, floored bool) XPRemovedEvent {
	return XPRemovedEvent{
		BaseEvent:   NewBaseEvent(EventXPRemoved, userID),
		EventID:     eventID,
		Source:      source,
		FinalAmount: finalAmount,
		TotalXP:     totalXP,
		Floored:     floored,
	}
}

// LevelUpEvent is emitted when a ledger append crosses a level threshold.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int   `json:"old_level"`
	NewLevel int   `json:"new_level"`
	TotalXP  int64 `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"total_xp":  e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int, totalXP int64) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// StreakUpdatedEvent is emitted when a day close extends the streak.
type StreakUpdatedEvent struct {
	BaseEvent
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
	Day           string `json:"day"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
		"day":            e.Day,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, current, longest int, day string) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventStreakUpdated, userID),
		CurrentStreak: current,
		LongestStreak: longest,
		Day:           day,
	}
}

// StreakBrokenEvent is emitted when a day close resets the streak.
type StreakBrokenEvent struct {
	BaseEvent
	PreviousStreak int    `json:"previous_streak"`
	Day            string `json:"day"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"previous_streak": e.PreviousStreak,
		"day":             e.Day,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(userID string, previous int, day string) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, userID),
		PreviousStreak: previous,
		Day:            day,
	}
}

// DebuffAppliedEvent is emitted when a missed day applies an XP penalty window.
type DebuffAppliedEvent struct {
	BaseEvent
	ActiveUntil time.Time `json:"active_until"`
	Factor      float64   `json:"factor"`
}

// Payload implements Event interface.
func (e DebuffAppliedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"active_until": e.ActiveUntil.Format(time.RFC3339),
		"factor":       e.Factor,
	}
}

// NewDebuffAppliedEvent creates a new DebuffAppliedEvent.
func NewDebuffAppliedEvent(userID string, until time.Time, factor float64) DebuffAppliedEvent {
	return DebuffAppliedEvent{
		BaseEvent:   NewBaseEvent(EventDebuffApplied, userID),
		ActiveUntil: until,
		Factor:      factor,
	}
}

// DebuffClearedEvent is emitted when a debuff expires or is cleared early.
type DebuffClearedEvent struct {
	BaseEvent
	Reason string `json:"reason"` // "expired" or "cleared.by_action"
}

// Payload implements Event interface.
func (e DebuffClearedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"reason": e.Reason}
}

// NewDebuffClearedEvent creates a new DebuffClearedEvent.
func NewDebuffClearedEvent(userID, reason string) DebuffClearedEvent {
	return DebuffClearedEvent{
		BaseEvent: NewBaseEvent(EventDebuffCleared, userID),
		Reason:    reason,
	}
}

// DayClosedEvent is emitted once per user per closed day.
type DayClosedEvent struct {
	BaseEvent
	Day        string `json:"day"`
	Satisfied  bool   `json:"satisfied"`
	QuestsDone int    `json:"quests_done"`
	Streak     int    `json:"streak"`
}

// Payload implements Event interface.
func (e DayClosedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"day":         e.Day,
		"satisfied":   e.Satisfied,
		"quests_done": e.QuestsDone,
		"streak":      e.Streak,
	}
}

// NewDayClosedEvent creates a new DayClosedEvent.
func NewDayClosedEvent(userID, day string, satisfied bool, questsDone, streak int) DayClosedEvent {
	return DayClosedEvent{
		BaseEvent:  NewBaseEvent(EventDayClosed, userID),
		Day:        day,
		Satisfied:  satisfied,
		QuestsDone: questsDone,
		Streak:     streak,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Return Protocol Events
// ═══════════════════════════════════════════════════════════════════════════

// ReturnTransitionEvent covers all return protocol state changes.
type ReturnTransitionEvent struct {
	BaseEvent
	Day               int `json:"day"`
	DaysSinceActivity int `json:"days_since_activity,omitempty"`
}

// Payload implements Event interface.
func (e ReturnTransitionEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"day":                 e.Day,
		"days_since_activity": e.DaysSinceActivity,
	}
}

// NewReturnTransitionEvent creates a return protocol transition event.
func NewReturnTransitionEvent(eventType EventType, userID string, day, daysSince int) ReturnTransitionEvent {
	return ReturnTransitionEvent{
		BaseEvent:         NewBaseEvent(eventType, userID),
		Day:               day,
		DaysSinceActivity: daysSince,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Quest Events
// ═══════════════════════════════════════════════════════════════════════════

// QuestOutcomeEvent covers quest completion, partial completion and failure.
type QuestOutcomeEvent struct {
	BaseEvent
	InstanceID        string  `json:"instance_id"`
	TemplateID        string  `json:"template_id"`
	CompletionPercent float64 `json:"completion_percent"`
	XPAwarded         int64   `json:"xp_awarded"`
}

// Payload implements Event interface.
func (e QuestOutcomeEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"instance_id":        e.InstanceID,
		"template_id":        e.TemplateID,
		"completion_percent": e.CompletionPercent,
		"xp_awarded":         e.XPAwarded,
	}
}

// NewQuestOutcomeEvent creates a quest outcome event.
func NewQuestOutcomeEvent(eventType EventType, userID, instanceID, templateID string, percent float64, xpAwarded int64) QuestOutcomeEvent {
	return QuestOutcomeEvent{
		BaseEvent:         NewBaseEvent(eventType, userID),
		InstanceID:        instanceID,
		TemplateID:        templateID,
		CompletionPercent: percent,
		XPAwarded:         xpAwarded,
	}
}

// TargetAdaptedEvent is emitted when the adaptation algorithm moves a target.
type TargetAdaptedEvent struct {
	BaseEvent
	TemplateID string  `json:"template_id"`
	OldTarget  float64 `json:"old_target"`
	NewTarget  float64 `json:"new_target"`
}

// Payload implements Event interface.
func (e TargetAdaptedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"template_id": e.TemplateID,
		"old_target":  e.OldTarget,
		"new_target":  e.NewTarget,
	}
}

// NewTargetAdaptedEvent creates a new TargetAdaptedEvent.
func NewTargetAdaptedEvent(userID, templateID string, oldTarget, newTarget float64) TargetAdaptedEvent {
	return TargetAdaptedEvent{
		BaseEvent:  NewBaseEvent(EventTargetAdapted, userID),
		TemplateID: templateID,
		OldTarget:  oldTarget,
		NewTarget:  newTarget,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// ChainCorruptedEvent is emitted when ledger verification finds a broken chain.
// It carries diagnostics only; repair is always a manual procedure.
type ChainCorruptedEvent struct {
	BaseEvent
	BadEventID string `json:"bad_event_id"`
	Details    string `json:"details"`
}

// Payload implements Event interface.
func (e ChainCorruptedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"bad_event_id": e.BadEventID,
		"details":      e.Details,
	}
}

// NewChainCorruptedEvent creates a new ChainCorruptedEvent.
func NewChainCorruptedEvent(userID, badEventID, details string) ChainCorruptedEvent {
	return ChainCorruptedEvent{
		BaseEvent:  NewBaseEvent(EventChainCorrupted, userID),
		BadEventID: badEventID,
		Details:    details,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Publishing
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler processes domain events.
type EventHandler interface {
	Handle(event Event) error
	Name() string
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc struct {
	HandlerName string
	Fn          func(event Event) error
}

// Handle implements EventHandler.
func (f EventHandlerFunc) Handle(event Event) error {
	return f.Fn(event)
}

// Name implements EventHandler.
func (f EventHandlerFunc) Name() string {
	return f.HandlerName
}

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	Publish(event Event) error
}

// NoopPublisher discards all events. Useful for tests.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(Event) error { return nil }
