// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD XP EVENT COMMAND
// Appends one immutable event to the user's XP ledger and atomically updates
// the denormalized progression state. Every XP change in the system - quest
// completions, corrections, resets - goes through this handler.
// ══════════════════════════════════════════════════════════════════════════════

// Well-known XP event sources.
const (
	SourceQuest       = "quest"
	SourceQuestReset  = "quest_reset"
	SourceStreakBonus = "streak_bonus"
	SourceCorrection  = "correction"
	SourceReturnBonus = "return_bonus"
)

// RecordXPEventCommand contains the data to record an XP event.
type RecordXPEventCommand struct {
	// UserID is the owner of the ledger chain.
	UserID string

	// Source identifies what produced the XP change.
	Source string

	// SourceID points at the producing entity (quest instance id, ...).
	SourceID string

	// BaseAmount is the signed amount before modifiers. Negative for removals.
	BaseAmount int64

	// Modifiers are the multipliers to apply (bonus before penalty).
	// An active debuff penalty is attached by the handler, not the caller.
	Modifiers []progression.Modifier

	// Description is a human-readable reason for the change.
	Description string

	// Timestamp is when the event occurred (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordXPEventCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return fmt.Errorf("record_xp_event: %w", err)
	}
	if c.Source == "" {
		return errors.New("record_xp_event: source is required")
	}
	if c.BaseAmount == 0 {
		return fmt.Errorf("record_xp_event: %w", shared.ErrZeroBaseAmount)
	}
	if err := progression.ValidateModifiers(c.Modifiers); err != nil {
		return fmt.Errorf("record_xp_event: %w", err)
	}
	return nil
}

// RecordXPEventResult contains the result of recording an XP event.
type RecordXPEventResult struct {
	// Event is the appended, sealed ledger event.
	Event progression.XPEvent

	// LeveledUp indicates the event crossed a level threshold upward.
	LeveledUp bool

	// NewLevel is the level after the event.
	NewLevel int

	// TotalXP is the running total after the event.
	TotalXP int64

	// DebuffPenaltyApplied indicates the handler attached a debuff penalty.
	DebuffPenaltyApplied bool

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordXPEventHandler handles the RecordXPEventCommand.
type RecordXPEventHandler struct {
	ledger         progression.LedgerRepository
	progressions   progression.ProgressionRepository
	calc           *progression.Calculator
	eventPublisher shared.EventPublisher

	// debuffFactor is the penalty multiplier attached to awards while a
	// debuff window is active.
	debuffFactor float64
}

// RecordXPEventHandlerConfig contains configuration for the handler.
type RecordXPEventHandlerConfig struct {
	DebuffFactor float64
}

// DefaultRecordXPEventHandlerConfig returns default configuration.
func DefaultRecordXPEventHandlerConfig() RecordXPEventHandlerConfig {
	return RecordXPEventHandlerConfig{DebuffFactor: 0.5}
}

// NewRecordXPEventHandler creates a new RecordXPEventHandler.
func NewRecordXPEventHandler(
	ledger progression.LedgerRepository,
	progressions progression.ProgressionRepository,
	calc *progression.Calculator,
	eventPublisher shared.EventPublisher,
	config RecordXPEventHandlerConfig,
) *RecordXPEventHandler {
	if config.DebuffFactor <= 0 || config.DebuffFactor >= 1 {
		config = DefaultRecordXPEventHandlerConfig()
	}
	return &RecordXPEventHandler{
		ledger:         ledger,
		progressions:   progressions,
		calc:           calc,
		eventPublisher: eventPublisher,
		debuffFactor:   config.DebuffFactor,
	}
}

// Handle executes the record XP event command.
//
// The append is optimistic: the event is computed from an unlocked read of
// the user's state, and the repository revalidates the chain tip under a
// row lock inside the same transaction that writes the event. A tip that
// moved in between surfaces as ErrConcurrencyConflict, which is safe to
// retry with backoff - the event is recomputed from the fresh state.
// An ambiguous failure from AppendEvent must NOT be blindly retried: the
// caller has to check whether the event landed before re-issuing.
func (h *RecordXPEventHandler) Handle(ctx context.Context, cmd RecordXPEventCommand) (*RecordXPEventResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	userID := shared.UserID(cmd.UserID)
	state, err := h.progressions.FindOrCreate(ctx, userID, timestamp)
	if err != nil {
		return nil, fmt.Errorf("record_xp_event: failed to load progression: %w", err)
	}

	result := &RecordXPEventResult{Events: make([]shared.Event, 0, 2)}

	// An active debuff taxes every award inside its window. The penalty is
	// recorded on the event itself so the final amount stays replayable.
	modifiers := cmd.Modifiers
	if cmd.BaseAmount > 0 && state.DebuffActive(timestamp) {
		modifiers = append(append([]progression.Modifier{}, modifiers...), progression.Modifier{
			Type:       progression.ModifierPenalty,
			Multiplier: h.debuffFactor,
			Order:      len(modifiers),
		})
		result.DebuffPenaltyApplied = true
	}

	ev, err := progression.NextEvent(state, h.calc, progression.RecordInput{
		Source:      cmd.Source,
		SourceID:    cmd.SourceID,
		BaseAmount:  cmd.BaseAmount,
		Modifiers:   modifiers,
		Description: cmd.Description,
	}, timestamp)
	if err != nil {
		return nil, fmt.Errorf("record_xp_event: %w", err)
	}

	levelBefore := state.Level
	state.ApplyLedgerEvent(ev, timestamp)

	if err := h.ledger.AppendEvent(ctx, ev, state); err != nil {
		return nil, fmt.Errorf("record_xp_event: failed to append event for user %s: %w", userID, err)
	}

	result.Event = ev
	result.NewLevel = ev.LevelAfter.Int()
	result.TotalXP = ev.TotalXPAfter
	result.LeveledUp = ev.LevelAfter > levelBefore

	if ev.IsRemoval() {
		result.Events = append(result.Events, shared.NewXPRemovedEvent(
			cmd.UserID, ev.ID, cmd.Source, ev.FinalAmount, ev.TotalXPAfter, ev.Floored()))
	} else {
		result.Events = append(result.Events, shared.NewXPGainedEvent(
			cmd.UserID, ev.ID, cmd.Source, cmd.SourceID, ev.BaseAmount, ev.FinalAmount, ev.TotalXPAfter))
	}
	if result.LeveledUp {
		result.Events = append(result.Events, shared.NewLevelUpEvent(
			cmd.UserID, levelBefore.Int(), ev.LevelAfter.Int(), ev.TotalXPAfter))
	}

	for _, event := range result.Events {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}
