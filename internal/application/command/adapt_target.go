package command

import (
	"context"
	"fmt"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/quest"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADAPT TARGET COMMAND
// Recomputes one user's personalized target for one quest template from the
// trailing window of finalized instances.
// ══════════════════════════════════════════════════════════════════════════════

// AdaptTargetCommand contains the data to adapt a target.
type AdaptTargetCommand struct {
	// UserID is the target owner.
	UserID string

	// TemplateID identifies the quest template.
	TemplateID string

	// Timestamp is when the adaptation runs (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c AdaptTargetCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return fmt.Errorf("adapt_target: %w", err)
	}
	if _, err := shared.NewTemplateID(c.TemplateID); err != nil {
		return fmt.Errorf("adapt_target: %w", err)
	}
	return nil
}

// AdaptTargetResult contains the result of adapting a target.
type AdaptTargetResult struct {
	// OldTarget and NewTarget bracket the adaptation.
	OldTarget float64
	NewTarget float64

	// Adapted indicates the target actually moved.
	Adapted bool

	// ManualOverride indicates adaptation is frozen for this target.
	ManualOverride bool

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AdaptTargetHandler handles the AdaptTargetCommand.
type AdaptTargetHandler struct {
	templates      quest.TemplateRepository
	instances      quest.InstanceRepository
	targets        quest.TargetRepository
	eventPublisher shared.EventPublisher
	policy         quest.AdaptPolicy
}

// NewAdaptTargetHandler creates a new AdaptTargetHandler.
func NewAdaptTargetHandler(
	templates quest.TemplateRepository,
	instances quest.InstanceRepository,
	targets quest.TargetRepository,
	eventPublisher shared.EventPublisher,
	policy quest.AdaptPolicy,
) *AdaptTargetHandler {
	if policy.WindowDays == 0 {
		policy = quest.DefaultAdaptPolicy()
	}
	return &AdaptTargetHandler{
		templates:      templates,
		instances:      instances,
		targets:        targets,
		eventPublisher: eventPublisher,
		policy:         policy,
	}
}

// Handle executes the adapt target command.
func (h *AdaptTargetHandler) Handle(ctx context.Context, cmd AdaptTargetCommand) (*AdaptTargetResult, error) {
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
		return nil, fmt.Errorf("adapt_target: failed to load template %s: %w", templateID, err)
	}

	target, err := h.targets.FindOrCreate(ctx, userID, templateID, tmpl.BaseTarget, timestamp)
	if err != nil {
		return nil, fmt.Errorf("adapt_target: failed to load target: %w", err)
	}

	if target.ManualOverride {
		// Frozen by an explicit user choice: report, do not touch.
		return &AdaptTargetResult{
			OldTarget:      target.AdaptedTarget,
			NewTarget:      target.AdaptedTarget,
			ManualOverride: true,
		}, nil
	}

	window := shared.TrailingDays(timestamp, h.policy.WindowDays)
	history, err := h.instances.ListHistory(ctx, userID, templateID, window)
	if err != nil {
		return nil, fmt.Errorf("adapt_target: failed to load history: %w", err)
	}

	adaptResult := target.Adapt(history, h.policy, timestamp)

	if err := h.targets.Save(ctx, target); err != nil {
		return nil, fmt.Errorf("adapt_target: failed to save target: %w", err)
	}

	result := &AdaptTargetResult{
		OldTarget: adaptResult.OldTarget,
		NewTarget: adaptResult.NewTarget,
		Adapted:   adaptResult.Adapted,
	}
	if adaptResult.Adapted {
		event := shared.NewTargetAdaptedEvent(cmd.UserID, cmd.TemplateID, adaptResult.OldTarget, adaptResult.NewTarget)
		result.Events = append(result.Events, event)
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}
