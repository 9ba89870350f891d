package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/quest"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET QUEST COMMAND
// Returns a finalized quest instance to ACTIVE. The ledger is append-only,
// so any XP the instance had awarded is reversed with an offsetting negative
// event rather than edited in place.
// ══════════════════════════════════════════════════════════════════════════════

// ResetQuestCommand contains the data to reset a quest instance.
type ResetQuestCommand struct {
	// UserID is the quest owner.
	UserID string

	// InstanceID is the quest instance to reset.
	InstanceID string

	// Reason is a human-readable justification, recorded on the
	// offsetting ledger event.
	Reason string

	// Timestamp is when the reset occurred (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ResetQuestCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return fmt.Errorf("reset_quest: %w", err)
	}
	if c.InstanceID == "" {
		return errors.New("reset_quest: instance_id is required")
	}
	return nil
}

// ResetQuestResult contains the result of resetting a quest.
type ResetQuestResult struct {
	// InstanceID is the reset instance.
	InstanceID string

	// ReversedXP is the XP removed by the offsetting event (0 if the
	// instance had not awarded any).
	ReversedXP int64

	// ReversalEventID is the offsetting ledger event, if one was written.
	ReversalEventID string

	// NewLevel is the user's level after the reversal.
	NewLevel int

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ResetQuestHandler handles the ResetQuestCommand.
type ResetQuestHandler struct {
	instances      quest.InstanceRepository
	recordXP       *RecordXPEventHandler
	eventPublisher shared.EventPublisher
}

// NewResetQuestHandler creates a new ResetQuestHandler.
func NewResetQuestHandler(
	instances quest.InstanceRepository,
	recordXP *RecordXPEventHandler,
	eventPublisher shared.EventPublisher,
) *ResetQuestHandler {
	return &ResetQuestHandler{
		instances:      instances,
		recordXP:       recordXP,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the reset quest command.
func (h *ResetQuestHandler) Handle(ctx context.Context, cmd ResetQuestCommand) (*ResetQuestResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	inst, err := h.instances.Find(ctx, cmd.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("reset_quest: failed to load instance %s: %w", cmd.InstanceID, err)
	}
	if inst.UserID != shared.UserID(cmd.UserID) {
		return nil, fmt.Errorf("reset_quest: instance %s: %w", cmd.InstanceID,
			shared.NewDomainError("quest", "Reset", shared.ErrValidation, "instance belongs to another user"))
	}

	reversedXP, err := inst.Reset(timestamp)
	if err != nil {
		return nil, fmt.Errorf("reset_quest: instance %s: %w", cmd.InstanceID, err)
	}

	result := &ResetQuestResult{InstanceID: inst.ID, ReversedXP: reversedXP}

	// The reversal goes through the ledger before the instance is saved:
	// if the append fails, nothing has changed on disk.
	if reversedXP > 0 {
		reason := cmd.Reason
		if reason == "" {
			reason = "quest reset"
		}
		xpResult, err := h.recordXP.Handle(ctx, RecordXPEventCommand{
			UserID:        cmd.UserID,
			Source:        SourceQuestReset,
			SourceID:      inst.ID,
			BaseAmount:    -reversedXP,
			Description:   reason,
			Timestamp:     timestamp,
			CorrelationID: cmd.CorrelationID,
		})
		if err != nil {
			return nil, fmt.Errorf("reset_quest: failed to reverse XP: %w", err)
		}
		result.ReversalEventID = xpResult.Event.ID
		result.NewLevel = xpResult.NewLevel
	}

	if err := h.instances.Save(ctx, inst); err != nil {
		return nil, fmt.Errorf("reset_quest: failed to save instance: %w", err)
	}

	event := shared.NewQuestOutcomeEvent(shared.EventQuestReset, cmd.UserID, inst.ID, inst.TemplateID.String(), 0, -reversedXP)
	result.Events = append(result.Events, event)
	_ = h.eventPublisher.Publish(event)

	return result, nil
}
