package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/quest"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
	"github.com/habitquest/habit-quest-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOSE DAY COMMAND
// Closes one local day for one user: decides whether the day's core quests
// were all satisfied, transitions the streak and debuff state accordingly,
// and advances the return protocol when it is active. Day close is
// idempotent - closing an already-closed day returns the stored summary.
// ══════════════════════════════════════════════════════════════════════════════

// CloseDayCommand contains the data to close a day.
type CloseDayCommand struct {
	// UserID is the user whose day is being closed.
	UserID string

	// Timezone is the user's IANA timezone; day boundaries resolve there.
	Timezone string

	// Day is the local day key to close ("2006-01-02"). Defaults to the
	// day of Timestamp in the user's timezone.
	Day string

	// Timestamp is when the close is performed (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CloseDayCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return fmt.Errorf("close_day: %w", err)
	}
	return nil
}

// CloseDayResult contains the result of closing a day.
type CloseDayResult struct {
	// Summary is the persisted day summary.
	Summary progression.DaySummary

	// AlreadyClosed indicates the day had been closed before and the
	// stored summary was returned unchanged.
	AlreadyClosed bool

	// StreakAfter is the streak after the close.
	StreakAfter int

	// StreakBroken indicates a non-zero streak was reset.
	StreakBroken bool

	// DebuffApplied indicates a new debuff window was opened.
	DebuffApplied bool

	// ReturnAdvanced / ReturnCompleted report return-protocol movement.
	ReturnAdvanced  bool
	ReturnCompleted bool

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CloseDayHandler handles the CloseDayCommand.
type CloseDayHandler struct {
	progressions   progression.ProgressionRepository
	templates      quest.TemplateRepository
	instances      quest.InstanceRepository
	eventPublisher shared.EventPublisher

	debuffWindow time.Duration
	debuffFactor float64

	// returnRequired is the reduced core-quest requirement per protocol
	// day (index = day-1).
	returnRequired [progression.ReturnDays]int
}

// CloseDayHandlerConfig contains configuration for the handler.
type CloseDayHandlerConfig struct {
	DebuffWindow   time.Duration
	DebuffFactor   float64
	ReturnRequired [progression.ReturnDays]int
}

// DefaultCloseDayHandlerConfig returns default configuration.
func DefaultCloseDayHandlerConfig() CloseDayHandlerConfig {
	return CloseDayHandlerConfig{
		DebuffWindow:   progression.DefaultDebuffWindow,
		DebuffFactor:   0.5,
		ReturnRequired: [progression.ReturnDays]int{1, 2, 2},
	}
}

// NewCloseDayHandler creates a new CloseDayHandler.
func NewCloseDayHandler(
	progressions progression.ProgressionRepository,
	templates quest.TemplateRepository,
	instances quest.InstanceRepository,
	eventPublisher shared.EventPublisher,
	config CloseDayHandlerConfig,
) *CloseDayHandler {
	if config.DebuffWindow == 0 {
		config = DefaultCloseDayHandlerConfig()
	}
	return &CloseDayHandler{
		progressions:   progressions,
		templates:      templates,
		instances:      instances,
		eventPublisher: eventPublisher,
		debuffWindow:   config.DebuffWindow,
		debuffFactor:   config.DebuffFactor,
		returnRequired: config.ReturnRequired,
	}
}

// Handle executes the close day command.
func (h *CloseDayHandler) Handle(ctx context.Context, cmd CloseDayCommand) (*CloseDayResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	loc, err := timeutil.LocationFor(cmd.Timezone)
	if err != nil {
		return nil, fmt.Errorf("close_day: %w", err)
	}
	day := cmd.Day
	if day == "" {
		day = timeutil.DayKey(timestamp, loc)
	}

	userID := shared.UserID(cmd.UserID)

	// Idempotency: an already-closed day returns the stored summary and
	// performs no transition.
	if stored, err := h.progressions.FindDaySummary(ctx, userID, day); err == nil {
		return &CloseDayResult{
			Summary:       *stored,
			AlreadyClosed: true,
			StreakAfter:   stored.StreakAfter,
		}, nil
	} else if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("close_day: failed to check day summary: %w", err)
	}

	state, err := h.progressions.FindOrCreate(ctx, userID, timestamp)
	if err != nil {
		return nil, fmt.Errorf("close_day: failed to load progression: %w", err)
	}

	result := &CloseDayResult{Events: make([]shared.Event, 0, 3)}

	// Lazy debuff expiry before any decision for this close.
	if state.ExpireDebuff(timestamp) {
		result.Events = append(result.Events,
			shared.NewDebuffClearedEvent(cmd.UserID, "expired"))
	}

	total, done, err := h.countCoreQuests(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	required := total
	if state.ReturnState == progression.ReturnActive {
		required = h.returnRequired[state.ReturnDay-1]
		if required > total && total > 0 {
			required = total
		}
	}
	satisfied := total > 0 && done >= required

	summary := progression.DaySummary{
		UserID:      userID,
		Day:         day,
		Satisfied:   satisfied,
		QuestsTotal: total,
		QuestsDone:  done,
		ClosedAt:    timestamp,
	}

	switch {
	case total == 0:
		// Nothing to miss: a day without core quests records a summary
		// but moves no state.
	case state.ReturnState == progression.ReturnActive:
		h.closeProtocolDay(state, day, satisfied, timestamp, cmd.UserID, result)
	default:
		h.closeNormalDay(state, day, satisfied, timestamp, cmd.UserID, result)
	}

	summary.StreakAfter = state.CurrentStreak
	summary.DebuffApplied = result.DebuffApplied

	// The summary write carries the (user, day) uniqueness guard; a race
	// with another close of the same day loses here and re-reads.
	if err := h.progressions.SaveDaySummary(ctx, summary); err != nil {
		if errors.Is(err, shared.ErrDayAlreadyClosed) {
			stored, ferr := h.progressions.FindDaySummary(ctx, userID, day)
			if ferr != nil {
				return nil, fmt.Errorf("close_day: failed to re-read day summary: %w", ferr)
			}
			return &CloseDayResult{Summary: *stored, AlreadyClosed: true, StreakAfter: stored.StreakAfter}, nil
		}
		return nil, fmt.Errorf("close_day: failed to save day summary: %w", err)
	}

	if err := h.progressions.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("close_day: failed to save progression: %w", err)
	}

	result.Summary = summary
	result.StreakAfter = state.CurrentStreak
	result.Events = append(result.Events,
		shared.NewDayClosedEvent(cmd.UserID, day, satisfied, done, state.CurrentStreak))

	for _, event := range result.Events {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}

// closeNormalDay runs the standard streak/debuff transition.
func (h *CloseDayHandler) closeNormalDay(state *progression.UserProgression, day string, satisfied bool, timestamp time.Time, userID string, result *CloseDayResult) {
	dayResult := state.CloseDay(day, satisfied, timestamp, h.debuffWindow)

	if satisfied {
		result.Events = append(result.Events,
			shared.NewStreakUpdatedEvent(userID, state.CurrentStreak, state.LongestStreak, day))
		if dayResult.DebuffCleared {
			result.Events = append(result.Events,
				shared.NewDebuffClearedEvent(userID, "cleared.by_action"))
		}
		return
	}

	if dayResult.StreakBroken {
		result.StreakBroken = true
		result.Events = append(result.Events,
			shared.NewStreakBrokenEvent(userID, dayResult.StreakBefore, day))
	}
	if dayResult.DebuffApplied {
		result.DebuffApplied = true
		result.Events = append(result.Events,
			shared.NewDebuffAppliedEvent(userID, *dayResult.DebuffUntil, h.debuffFactor))
	}
}

// closeProtocolDay advances the return protocol on a qualifying close.
// Streak accrual is suspended while the protocol runs; the flat bootstrap
// streak on completing the final day replaces it. Missed protocol days
// still apply the normal debuff against the reduced requirement.
func (h *CloseDayHandler) closeProtocolDay(state *progression.UserProgression, day string, satisfied bool, timestamp time.Time, userID string, result *CloseDayResult) {
	if !satisfied {
		dayResult := state.CloseDay(day, false, timestamp, h.debuffWindow)
		if dayResult.DebuffApplied {
			result.DebuffApplied = true
			result.Events = append(result.Events,
				shared.NewDebuffAppliedEvent(userID, *dayResult.DebuffUntil, h.debuffFactor))
		}
		return
	}

	protocolDay := state.ReturnDay
	completed, err := state.AdvanceReturn(timestamp)
	if err != nil {
		// Unreachable: the caller checked ReturnActive.
		return
	}
	state.LastClosedDay = day
	if state.ClearDebuff() {
		result.Events = append(result.Events,
			shared.NewDebuffClearedEvent(userID, "cleared.by_action"))
	}

	result.ReturnAdvanced = true
	if completed {
		result.ReturnCompleted = true
		result.Events = append(result.Events,
			shared.NewReturnTransitionEvent(shared.EventReturnCompleted, userID, protocolDay, 0),
			shared.NewStreakUpdatedEvent(userID, state.CurrentStreak, state.LongestStreak, day))
		return
	}
	result.Events = append(result.Events,
		shared.NewReturnTransitionEvent(shared.EventReturnAdvanced, userID, state.ReturnDay, 0))
}

// countCoreQuests tallies the user's core quest instances for the day.
func (h *CloseDayHandler) countCoreQuests(ctx context.Context, userID shared.UserID, day string) (total, done int, err error) {
	coreTemplates, err := h.templates.ListCore(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("close_day: failed to list core templates: %w", err)
	}

	instances, err := h.instances.ListByUserPeriod(ctx, userID, shared.DailyPeriod(day))
	if err != nil {
		return 0, 0, fmt.Errorf("close_day: failed to list instances: %w", err)
	}
	byTemplate := make(map[shared.TemplateID]*quest.Instance, len(instances))
	for _, inst := range instances {
		byTemplate[inst.TemplateID] = inst
	}

	for _, tmpl := range coreTemplates {
		if tmpl.PeriodType != shared.PeriodDaily {
			continue
		}
		total++
		// Partial completion counts: the requirement threshold already
		// gated the award.
		if inst, ok := byTemplate[tmpl.ID]; ok && inst.Status == quest.StatusCompleted {
			done++
		}
	}
	return total, done, nil
}
