package command

import (
	"context"
	"fmt"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RETURN PROTOCOL COMMANDS
// Offer, accept and decline transitions of the 3-day re-entry ramp after a
// long absence. Advancement through protocol days happens in CloseDay;
// these commands only move the protocol in and out of its states.
// ══════════════════════════════════════════════════════════════════════════════

// OfferReturnCommand flags the protocol offer for an absent user. Issued by
// the absence-detection job, or implicitly on accept for a user who comes
// back before the job has seen them.
type OfferReturnCommand struct {
	UserID        string
	Timestamp     time.Time
	CorrelationID string
}

// Validate validates the command.
func (c OfferReturnCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return fmt.Errorf("offer_return: %w", err)
	}
	return nil
}

// AcceptReturnCommand accepts an offered protocol.
type AcceptReturnCommand struct {
	UserID        string
	Timestamp     time.Time
	CorrelationID string
}

// Validate validates the command.
func (c AcceptReturnCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return fmt.Errorf("accept_return: %w", err)
	}
	return nil
}

// DeclineReturnCommand declines the offer or exits on protocol day 1.
type DeclineReturnCommand struct {
	UserID        string
	Timestamp     time.Time
	CorrelationID string
}

// Validate validates the command.
func (c DeclineReturnCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return fmt.Errorf("decline_return: %w", err)
	}
	return nil
}

// ReturnProtocolResult contains the resulting protocol state.
type ReturnProtocolResult struct {
	State             progression.ReturnState
	Day               int
	DaysSinceActivity int
	Events            []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ReturnProtocolHandler handles return-protocol transitions.
type ReturnProtocolHandler struct {
	progressions   progression.ProgressionRepository
	eventPublisher shared.EventPublisher
}

// NewReturnProtocolHandler creates a new ReturnProtocolHandler.
func NewReturnProtocolHandler(
	progressions progression.ProgressionRepository,
	eventPublisher shared.EventPublisher,
) *ReturnProtocolHandler {
	return &ReturnProtocolHandler{
		progressions:   progressions,
		eventPublisher: eventPublisher,
	}
}

// HandleOffer executes the offer return command.
func (h *ReturnProtocolHandler) HandleOffer(ctx context.Context, cmd OfferReturnCommand) (*ReturnProtocolResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	timestamp := defaultNow(cmd.Timestamp)
	userID := shared.UserID(cmd.UserID)

	state, err := h.progressions.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("offer_return: failed to load progression: %w", err)
	}

	alreadyOffered := state.ReturnState == progression.ReturnOffered
	if err := state.OfferReturn(timestamp); err != nil {
		return nil, fmt.Errorf("offer_return: user %s: %w", userID, err)
	}

	result := &ReturnProtocolResult{
		State:             state.ReturnState,
		DaysSinceActivity: state.AbsenceDays(timestamp),
	}
	if alreadyOffered {
		return result, nil
	}

	if err := h.progressions.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("offer_return: failed to save progression: %w", err)
	}

	event := shared.NewReturnTransitionEvent(shared.EventReturnOffered, cmd.UserID, 0, result.DaysSinceActivity)
	result.Events = append(result.Events, event)
	_ = h.eventPublisher.Publish(event)
	return result, nil
}

// HandleAccept executes the accept return command. A user whose absence
// qualifies but who was never explicitly offered (the detection job has not
// run yet) is offered and accepted in one step.
func (h *ReturnProtocolHandler) HandleAccept(ctx context.Context, cmd AcceptReturnCommand) (*ReturnProtocolResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	timestamp := defaultNow(cmd.Timestamp)
	userID := shared.UserID(cmd.UserID)

	state, err := h.progressions.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("accept_return: failed to load progression: %w", err)
	}

	if state.ReturnState == progression.ReturnInactive {
		if err := state.OfferReturn(timestamp); err != nil {
			return nil, fmt.Errorf("accept_return: user %s: %w", userID, err)
		}
	}
	if err := state.AcceptReturn(timestamp); err != nil {
		return nil, fmt.Errorf("accept_return: user %s: %w", userID, err)
	}

	if err := h.progressions.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("accept_return: failed to save progression: %w", err)
	}

	result := &ReturnProtocolResult{
		State:             state.ReturnState,
		Day:               state.ReturnDay,
		DaysSinceActivity: state.AbsenceDays(timestamp),
	}
	event := shared.NewReturnTransitionEvent(shared.EventReturnAccepted, cmd.UserID, state.ReturnDay, result.DaysSinceActivity)
	result.Events = append(result.Events, event)
	_ = h.eventPublisher.Publish(event)
	return result, nil
}

// HandleDecline executes the decline return command.
func (h *ReturnProtocolHandler) HandleDecline(ctx context.Context, cmd DeclineReturnCommand) (*ReturnProtocolResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	timestamp := defaultNow(cmd.Timestamp)
	userID := shared.UserID(cmd.UserID)

	state, err := h.progressions.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("decline_return: failed to load progression: %w", err)
	}

	declinedDay := state.ReturnDay
	if err := state.DeclineReturn(timestamp); err != nil {
		return nil, fmt.Errorf("decline_return: user %s: %w", userID, err)
	}

	if err := h.progressions.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("decline_return: failed to save progression: %w", err)
	}

	result := &ReturnProtocolResult{State: state.ReturnState}
	event := shared.NewReturnTransitionEvent(shared.EventReturnDeclined, cmd.UserID, declinedDay, 0)
	result.Events = append(result.Events, event)
	_ = h.eventPublisher.Publish(event)
	return result, nil
}

func defaultNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
