// Package jobs contains implementations of scheduled jobs for the
// progression engine.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY CHAINS JOB
// ══════════════════════════════════════════════════════════════════════════════

// VerifyChainsJob walks every user's XP ledger and recomputes the hash chain.
// Corruption is diagnosed and reported, never repaired: the job publishes a
// system event and moves on. Writes to a corrupted chain are a separate
// concern and are rejected at append time.
type VerifyChainsJob struct {
	progressions   progression.ProgressionRepository
	ledger         progression.LedgerRepository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	config VerifyChainsConfig

	lastRunStats atomic.Value // *VerifyChainsStats
}

// VerifyChainsConfig contains configuration for the chain verification job.
type VerifyChainsConfig struct {
	// BatchSize is the number of users fetched per page.
	BatchSize int

	// Timeout is the maximum duration for the job.
	Timeout time.Duration
}

// DefaultVerifyChainsConfig returns sensible defaults.
func DefaultVerifyChainsConfig() VerifyChainsConfig {
	return VerifyChainsConfig{
		BatchSize: 200,
		Timeout:   10 * time.Minute,
	}
}

// VerifyChainsStats contains statistics from a verification run.
type VerifyChainsStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	UsersChecked   int
	EventsChecked  int
	ChainsCorrupt  int
	CorruptedUsers []string
	Errors         []error
}

// NewVerifyChainsJob creates a new chain verification job.
func NewVerifyChainsJob(
	progressions progression.ProgressionRepository,
	ledger progression.LedgerRepository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config VerifyChainsConfig,
) *VerifyChainsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 200
	}

	return &VerifyChainsJob{
		progressions:   progressions,
		ledger:         ledger,
		eventPublisher: eventPublisher,
		logger:         logger,
		config:         config,
	}
}

// Name returns the job name.
func (j *VerifyChainsJob) Name() string {
	return "verify_chains"
}

// Description returns a human-readable description.
func (j *VerifyChainsJob) Description() string {
	return "Recomputes XP ledger hash chains and reports corruption"
}

// Run executes the verification job.
func (j *VerifyChainsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &VerifyChainsStats{
		StartedAt:      startedAt,
		CorruptedUsers: make([]string, 0),
		Errors:         make([]error, 0),
	}

	j.logger.Info("starting verify_chains job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	offset := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		userIDs, err := j.progressions.ListUserIDs(ctx, j.config.BatchSize, offset)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		if len(userIDs) == 0 {
			break
		}

		for _, userID := range userIDs {
			if err := j.verifyUser(ctx, userID, stats); err != nil {
				stats.Errors = append(stats.Errors, err)
				j.logger.Error("failed to verify chain",
					"user_id", userID,
					"error", err,
				)
			}
		}

		offset += len(userIDs)
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("verify_chains job completed",
		"duration", stats.Duration.String(),
		"users_checked", stats.UsersChecked,
		"events_checked", stats.EventsChecked,
		"chains_corrupt", stats.ChainsCorrupt,
	)

	if stats.ChainsCorrupt > 0 {
		return fmt.Errorf("found %d corrupted chains", stats.ChainsCorrupt)
	}
	return nil
}

// verifyUser recomputes the hash chain of a single user.
func (j *VerifyChainsJob) verifyUser(ctx context.Context, userID shared.UserID, stats *VerifyChainsStats) error {
	events, err := j.ledger.ListEvents(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load events for %s: %w", userID, err)
	}

	stats.UsersChecked++
	stats.EventsChecked += len(events)

	report := progression.VerifyChain(userID, events)
	if report.Valid {
		return nil
	}

	stats.ChainsCorrupt++
	stats.CorruptedUsers = append(stats.CorruptedUsers, string(userID))

	j.logger.Error("ledger chain corrupted",
		"user_id", userID,
		"bad_event_id", report.BadID,
		"details", report.Details,
	)

	event := shared.NewChainCorruptedEvent(string(userID), report.BadID, report.Details)
	if err := j.eventPublisher.Publish(event); err != nil && !errors.Is(err, context.Canceled) {
		j.logger.Warn("failed to publish corruption event", "user_id", userID, "error", err)
	}

	return nil
}

// LastRunStats returns statistics from the last verification run.
func (j *VerifyChainsJob) LastRunStats() *VerifyChainsStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*VerifyChainsStats)
}
