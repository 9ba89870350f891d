package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/quest"
	"github.com/habitquest/habit-quest-hub/internal/domain/requirement"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE QUEST COMMAND
// Evaluates a quest instance against a metrics snapshot, finalizes it, and
// awards XP through the ledger. Full satisfaction completes the quest;
// a high-enough partial ratio completes it partially with scaled XP;
// anything else fails it without an award.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteQuestCommand contains the data to complete a quest.
type CompleteQuestCommand struct {
	// UserID is the quest owner.
	UserID string

	// TemplateID identifies the quest template.
	TemplateID string

	// Period is the quest period being finalized.
	Period shared.Period

	// Metrics is the snapshot the requirement is evaluated against.
	Metrics requirement.Metrics

	// CurrentValue is the raw numeric progress for target-bearing quests
	// (kept on the instance for the adaptation window).
	CurrentValue float64

	// Timestamp is when the completion occurred (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteQuestCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return fmt.Errorf("complete_quest: %w", err)
	}
	if _, err := shared.NewTemplateID(c.TemplateID); err != nil {
		return fmt.Errorf("complete_quest: %w", err)
	}
	if !c.Period.IsValid() {
		return errors.New("complete_quest: period is required")
	}
	if c.Metrics == nil {
		return errors.New("complete_quest: metrics snapshot is required")
	}
	return nil
}

// CompleteQuestResult contains the result of completing a quest.
type CompleteQuestResult struct {
	// Instance is the finalized quest instance.
	Instance *quest.Instance

	// Verdict is the evaluator's decision.
	Verdict requirement.Verdict

	// Partial indicates the quest was completed partially.
	Partial bool

	// XPAwarded is the XP credited through the ledger (0 on failure).
	XPAwarded int64

	// LeveledUp indicates the award crossed a level threshold.
	LeveledUp bool

	// NewLevel is the user's level after the award.
	NewLevel int

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteQuestHandler handles the CompleteQuestCommand.
type CompleteQuestHandler struct {
	templates      quest.TemplateRepository
	instances      quest.InstanceRepository
	targets        quest.TargetRepository
	progressions   progression.ProgressionRepository
	recordXP       *RecordXPEventHandler
	eventPublisher shared.EventPublisher
}

// NewCompleteQuestHandler creates a new CompleteQuestHandler.
func NewCompleteQuestHandler(
	templates quest.TemplateRepository,
	instances quest.InstanceRepository,
	targets quest.TargetRepository,
	progressions progression.ProgressionRepository,
	recordXP *RecordXPEventHandler,
	eventPublisher shared.EventPublisher,
) *CompleteQuestHandler {
	return &CompleteQuestHandler{
		templates:      templates,
		instances:      instances,
		targets:        targets,
		progressions:   progressions,
		recordXP:       recordXP,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the complete quest command.
func (h *CompleteQuestHandler) Handle(ctx context.Context, cmd CompleteQuestCommand) (*CompleteQuestResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	userID := shared.UserID(cmd.UserID)
	templateID := shared.TemplateID(cmd.TemplateID)

	tmpl, err := h.templates.Find(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("complete_quest: failed to load template %s: %w", templateID, err)
	}

	inst, err := h.findOrCreateInstance(ctx, *tmpl, userID, cmd.Period, timestamp)
	if err != nil {
		return nil, err
	}
	if inst.Status.Final() {
		return nil, fmt.Errorf("complete_quest: instance %s: %w", inst.ID, shared.ErrInstanceFinalized)
	}

	if cmd.CurrentValue > 0 {
		if err := inst.UpdateProgress(cmd.CurrentValue, timestamp); err != nil {
			return nil, fmt.Errorf("complete_quest: %w", err)
		}
	}

	verdict := requirement.Evaluate(tmpl.Requirement, cmd.Metrics)

	result := &CompleteQuestResult{
		Instance: inst,
		Verdict:  verdict,
		Events:   make([]shared.Event, 0, 1),
	}

	switch {
	case verdict.Satisfied:
		if err := h.award(ctx, cmd, tmpl, inst, verdict.AchievedRatio, tmpl.BaseXP, false, timestamp, result); err != nil {
			return nil, err
		}
		result.Events = append(result.Events, shared.NewQuestOutcomeEvent(
			shared.EventQuestCompleted, cmd.UserID, inst.ID, cmd.TemplateID, verdict.AchievedRatio*100, result.XPAwarded))

	case tmpl.PartialXP(verdict.AchievedRatio) > 0:
		if err := h.award(ctx, cmd, tmpl, inst, verdict.AchievedRatio, tmpl.PartialXP(verdict.AchievedRatio), true, timestamp, result); err != nil {
			return nil, err
		}
		result.Partial = true
		result.Events = append(result.Events, shared.NewQuestOutcomeEvent(
			shared.EventQuestPartial, cmd.UserID, inst.ID, cmd.TemplateID, verdict.AchievedRatio*100, result.XPAwarded))

	default:
		if err := inst.Fail(verdict.AchievedRatio, timestamp); err != nil {
			return nil, fmt.Errorf("complete_quest: %w", err)
		}
		if err := h.instances.Save(ctx, inst); err != nil {
			return nil, fmt.Errorf("complete_quest: failed to save instance: %w", err)
		}
		result.Events = append(result.Events, shared.NewQuestOutcomeEvent(
			shared.EventQuestFailed, cmd.UserID, inst.ID, cmd.TemplateID, verdict.AchievedRatio*100, 0))
	}

	// The XP handler publishes its own ledger events; only quest outcome
	// events are published here.
	for _, event := range result.Events {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}

// award records the XP event, finalizes the instance and marks activity.
func (h *CompleteQuestHandler) award(
	ctx context.Context,
	cmd CompleteQuestCommand,
	tmpl *quest.Template,
	inst *quest.Instance,
	ratio float64,
	amount int64,
	partial bool,
	timestamp time.Time,
	result *CompleteQuestResult,
) error {
	xpResult, err := h.recordXP.Handle(ctx, RecordXPEventCommand{
		UserID:        cmd.UserID,
		Source:        SourceQuest,
		SourceID:      inst.ID,
		BaseAmount:    amount,
		Description:   fmt.Sprintf("quest %s (%s)", tmpl.ID, cmd.Period),
		Timestamp:     timestamp,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		return fmt.Errorf("complete_quest: failed to award XP: %w", err)
	}

	finalAmount := xpResult.Event.FinalAmount
	if partial {
		err = inst.CompletePartial(ratio, finalAmount, xpResult.Event.ID, timestamp)
	} else {
		err = inst.Complete(ratio, finalAmount, xpResult.Event.ID, timestamp)
	}
	if err != nil {
		return fmt.Errorf("complete_quest: %w", err)
	}

	if err := h.instances.Save(ctx, inst); err != nil {
		return fmt.Errorf("complete_quest: failed to save instance: %w", err)
	}

	// A satisfied requirement counts as activity for absence tracking.
	state, err := h.progressions.Find(ctx, shared.UserID(cmd.UserID))
	if err == nil {
		state.RecordActivity(timestamp)
		_ = h.progressions.Save(ctx, state)
	}

	result.XPAwarded = finalAmount
	result.LeveledUp = xpResult.LeveledUp
	result.NewLevel = xpResult.NewLevel
	return nil
}

// findOrCreateInstance loads the period instance, creating it on demand with
// the user's adapted target when one exists.
func (h *CompleteQuestHandler) findOrCreateInstance(
	ctx context.Context,
	tmpl quest.Template,
	userID shared.UserID,
	period shared.Period,
	now time.Time,
) (*quest.Instance, error) {
	inst, err := h.instances.FindByPeriod(ctx, userID, tmpl.ID, period)
	if err == nil {
		return inst, nil
	}
	if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("complete_quest: failed to load instance: %w", err)
	}

	targetValue := tmpl.BaseTarget
	if target, terr := h.targets.Find(ctx, userID, tmpl.ID); terr == nil {
		targetValue = target.AdaptedTarget
	}

	inst, err = quest.NewInstance(tmpl, userID, period, targetValue, now)
	if err != nil {
		return nil, fmt.Errorf("complete_quest: %w", err)
	}
	if err := h.instances.Save(ctx, inst); err != nil {
		return nil, fmt.Errorf("complete_quest: failed to create instance: %w", err)
	}
	return inst, nil
}
