package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/application/command"
	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
	"github.com/habitquest/habit-quest-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DETECT ABSENT JOB
// ══════════════════════════════════════════════════════════════════════════════

// DetectAbsentJob finds users who have been away long enough to qualify for
// the return protocol and issues the offer. The offer itself is idempotent:
// a user the job has already seen stays in OFFERED until they accept,
// decline, or simply act (which clears the offer through the command path).
type DetectAbsentJob struct {
	progressions progression.ProgressionRepository
	returns      *command.ReturnProtocolHandler
	logger       *slog.Logger
	retrier      *retry.Retrier

	config DetectAbsentConfig

	lastRunStats atomic.Value // *DetectAbsentStats
}

// DetectAbsentConfig contains configuration for the absence detection job.
type DetectAbsentConfig struct {
	// AbsenceThresholdDays is the minimum full days of absence before an
	// offer is made.
	AbsenceThresholdDays int

	// BatchSize caps the number of users processed per run.
	BatchSize int

	// Timeout is the maximum duration for the job.
	Timeout time.Duration
}

// DefaultDetectAbsentConfig returns sensible defaults.
func DefaultDetectAbsentConfig() DetectAbsentConfig {
	return DetectAbsentConfig{
		AbsenceThresholdDays: progression.ReturnOfferThresholdDays,
		BatchSize:            500,
		Timeout:              5 * time.Minute,
	}
}

// DetectAbsentStats contains statistics from a detection run.
type DetectAbsentStats struct {
	StartedAt     time.Time
	CompletedAt   time.Time
	Duration      time.Duration
	UsersExamined int
	OffersMade    int
	Skipped       int
	Errors        []error
}

// NewDetectAbsentJob creates a new absence detection job.
func NewDetectAbsentJob(
	progressions progression.ProgressionRepository,
	returns *command.ReturnProtocolHandler,
	logger *slog.Logger,
	config DetectAbsentConfig,
) *DetectAbsentJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.AbsenceThresholdDays <= 0 {
		config.AbsenceThresholdDays = progression.ReturnOfferThresholdDays
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}

	// An absent user can act at the exact moment the offer is written;
	// the resulting write conflict is transient and safe to retry.
	retrier := retry.New(
		retry.WithMaxAttempts(3),
		retry.WithRetryIf(shared.IsRetryable),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Warn("retrying return offer",
				"attempt", attempt,
				"delay", delay.String(),
				"error", err,
			)
		}),
	)

	return &DetectAbsentJob{
		progressions: progressions,
		returns:      returns,
		logger:       logger,
		retrier:      retrier,
		config:       config,
	}
}

// Name returns the job name.
func (j *DetectAbsentJob) Name() string {
	return "detect_absent"
}

// Description returns a human-readable description.
func (j *DetectAbsentJob) Description() string {
	return "Detects long-absent users and offers the return protocol"
}

// Run executes the detection job.
func (j *DetectAbsentJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &DetectAbsentStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	j.logger.Info("starting detect_absent job",
		"threshold_days", j.config.AbsenceThresholdDays,
	)

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	cutoff := startedAt.UTC().AddDate(0, 0, -j.config.AbsenceThresholdDays)
	absent, err := j.progressions.ListAbsentSince(ctx, cutoff, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list absent users: %w", err)
	}

	stats.UsersExamined = len(absent)

	for _, state := range absent {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := j.offerReturn(ctx, state, stats); err != nil {
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to offer return protocol",
				"user_id", state.UserID,
				"error", err,
			)
		}
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("detect_absent job completed",
		"duration", stats.Duration.String(),
		"users_examined", stats.UsersExamined,
		"offers_made", stats.OffersMade,
		"skipped", stats.Skipped,
	)

	return nil
}

// offerReturn issues the return offer for one absent user.
func (j *DetectAbsentJob) offerReturn(ctx context.Context, state *progression.UserProgression, stats *DetectAbsentStats) error {
	cmd := command.OfferReturnCommand{
		UserID:        string(state.UserID),
		Timestamp:     time.Now().UTC(),
		CorrelationID: fmt.Sprintf("detect_absent:%s", time.Now().UTC().Format("2006-01-02")),
	}

	var result *command.ReturnProtocolResult
	err := j.retrier.Do(ctx, func(ctx context.Context) error {
		var offerErr error
		result, offerErr = j.returns.HandleOffer(ctx, cmd)
		return offerErr
	})
	if err != nil {
		// The user may have acted between the listing and the offer.
		if errors.Is(err, shared.ErrStateTransition) {
			stats.Skipped++
			return nil
		}
		return err
	}

	if result.State == progression.ReturnOffered {
		stats.OffersMade++
		j.logger.Info("return protocol offered",
			"user_id", state.UserID,
			"days_absent", result.DaysSinceActivity,
		)
	} else {
		stats.Skipped++
	}

	return nil
}

// LastRunStats returns statistics from the last detection run.
func (j *DetectAbsentJob) LastRunStats() *DetectAbsentStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*DetectAbsentStats)
}
