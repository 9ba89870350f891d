package command

import (
	"context"
	"fmt"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/quest"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL TARGET COMMANDS
// Explicit user control over a quest target: setting a manual value freezes
// automatic adaptation until the override is cleared.
// ══════════════════════════════════════════════════════════════════════════════

// SetManualTargetCommand contains the data to set a manual target.
type SetManualTargetCommand struct {
	UserID        string
	TemplateID    string
	Value         float64
	Timestamp     time.Time
	CorrelationID string
}

// Validate validates the command.
func (c SetManualTargetCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return fmt.Errorf("set_manual_target: %w", err)
	}
	if _, err := shared.NewTemplateID(c.TemplateID); err != nil {
		return fmt.Errorf("set_manual_target: %w", err)
	}
	if c.Value <= 0 {
		return fmt.Errorf("set_manual_target: %w",
			shared.NewDomainError("quest", "SetManualTarget", shared.ErrValueOutOfRange, "target value must be positive"))
	}
	return nil
}

// ClearManualOverrideCommand re-enables automatic adaptation.
type ClearManualOverrideCommand struct {
	UserID        string
	TemplateID    string
	Timestamp     time.Time
	CorrelationID string
}

// Validate validates the command.
func (c ClearManualOverrideCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return fmt.Errorf("clear_manual_override: %w", err)
	}
	if _, err := shared.NewTemplateID(c.TemplateID); err != nil {
		return fmt.Errorf("clear_manual_override: %w", err)
	}
	return nil
}

// ManualTargetResult contains the resulting target state.
type ManualTargetResult struct {
	Target         float64
	ManualOverride bool
	Events         []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ManualTargetHandler handles manual target commands.
type ManualTargetHandler struct {
	templates      quest.TemplateRepository
	targets        quest.TargetRepository
	eventPublisher shared.EventPublisher
	policy         quest.AdaptPolicy
}

// NewManualTargetHandler creates a new ManualTargetHandler.
func NewManualTargetHandler(
	templates quest.TemplateRepository,
	targets quest.TargetRepository,
	eventPublisher shared.EventPublisher,
	policy quest.AdaptPolicy,
) *ManualTargetHandler {
	if policy.WindowDays == 0 {
		policy = quest.DefaultAdaptPolicy()
	}
	return &ManualTargetHandler{
		templates:      templates,
		targets:        targets,
		eventPublisher: eventPublisher,
		policy:         policy,
	}
}

// HandleSet executes the set manual target command.
func (h *ManualTargetHandler) HandleSet(ctx context.Context, cmd SetManualTargetCommand) (*ManualTargetResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	timestamp := defaultNow(cmd.Timestamp)
	userID := shared.UserID(cmd.UserID)
	templateID := shared.TemplateID(cmd.TemplateID)

	tmpl, err := h.templates.Find(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("set_manual_target: failed to load template %s: %w", templateID, err)
	}

	target, err := h.targets.FindOrCreate(ctx, userID, templateID, tmpl.BaseTarget, timestamp)
	if err != nil {
		return nil, fmt.Errorf("set_manual_target: failed to load target: %w", err)
	}

	if err := target.SetManual(cmd.Value, h.policy, timestamp); err != nil {
		return nil, fmt.Errorf("set_manual_target: %w", err)
	}
	if err := h.targets.Save(ctx, target); err != nil {
		return nil, fmt.Errorf("set_manual_target: failed to save target: %w", err)
	}

	result := &ManualTargetResult{Target: target.AdaptedTarget, ManualOverride: true}
	event := shared.NewTargetAdaptedEvent(cmd.UserID, cmd.TemplateID, target.BaseTarget, target.AdaptedTarget)
	event.BaseEvent = shared.NewBaseEvent(shared.EventTargetOverride, cmd.UserID)
	result.Events = append(result.Events, event)
	_ = h.eventPublisher.Publish(event)
	return result, nil
}

// HandleClear executes the clear manual override command.
func (h *ManualTargetHandler) HandleClear(ctx context.Context, cmd ClearManualOverrideCommand) (*ManualTargetResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	timestamp := defaultNow(cmd.Timestamp)
	userID := shared.UserID(cmd.UserID)
	templateID := shared.TemplateID(cmd.TemplateID)

	target, err := h.targets.Find(ctx, userID, templateID)
	if err != nil {
		return nil, fmt.Errorf("clear_manual_override: failed to load target: %w", err)
	}

	target.ClearManualOverride(timestamp)
	if err := h.targets.Save(ctx, target); err != nil {
		return nil, fmt.Errorf("clear_manual_override: failed to save target: %w", err)
	}

	return &ManualTargetResult{Target: target.AdaptedTarget, ManualOverride: false}, nil
}
