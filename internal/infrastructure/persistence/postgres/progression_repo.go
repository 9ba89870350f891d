// Package postgres implements the PostgreSQL persistence layer.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressionRepository implements progression.ProgressionRepository for PostgreSQL.
type ProgressionRepository struct {
	conn *Connection
}

// NewProgressionRepository creates a new ProgressionRepository.
func NewProgressionRepository(conn *Connection) *ProgressionRepository {
	return &ProgressionRepository{conn: conn}
}

const progressionColumns = `
	user_id, level, total_xp, current_streak, longest_streak,
	debuff_active_until, return_state, return_day,
	last_activity_at, last_closed_day, last_event_hash, updated_at
`

// Find returns the user's progression state.
func (r *ProgressionRepository) Find(ctx context.Context, userID shared.UserID) (*progression.UserProgression, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+progressionColumns+`
		FROM user_progression
		WHERE user_id = $1
	`, userID.String())

	state, err := scanProgression(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressionNotFound
		}
		return nil, classifyErr("Find", err)
	}
	return state, nil
}

// FindOrCreate returns the state, inserting the initial row when missing.
func (r *ProgressionRepository) FindOrCreate(ctx context.Context, userID shared.UserID, now time.Time) (*progression.UserProgression, error) {
	state, err := r.Find(ctx, userID)
	if err == nil {
		return state, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	state = progression.NewUserProgression(userID, now)
	_, err = r.conn.Exec(ctx, `
		INSERT INTO user_progression (`+progressionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO NOTHING
	`, progressionArgs(state)...)
	if err != nil {
		return nil, classifyErr("FindOrCreate", fmt.Errorf("failed to insert progression: %w", err))
	}

	// A concurrent create may have won; read back the authoritative row.
	return r.Find(ctx, userID)
}

// Save persists state changes that produce no ledger event (streak, debuff,
// return protocol transitions). Ledger-driven changes go through AppendEvent.
func (r *ProgressionRepository) Save(ctx context.Context, p *progression.UserProgression) error {
	if err := updateProgressionQ(ctx, r.conn, p); err != nil {
		return classifyErr("Save", err)
	}
	return nil
}

// SaveDaySummary records a closed day. The (user_id, day) primary key makes
// repeat closes fail with ErrDayAlreadyClosed.
func (r *ProgressionRepository) SaveDaySummary(ctx context.Context, s progression.DaySummary) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO day_summaries (
			user_id, day, satisfied, quests_total, quests_done,
			streak_after, debuff_applied, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		s.UserID.String(),
		s.Day,
		s.Satisfied,
		s.QuestsTotal,
		s.QuestsDone,
		s.StreakAfter,
		s.DebuffApplied,
		s.ClosedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDayAlreadyClosed
		}
		return classifyErr("SaveDaySummary", fmt.Errorf("failed to insert day summary: %w", err))
	}
	return nil
}

// FindDaySummary returns the stored summary for a closed day.
func (r *ProgressionRepository) FindDaySummary(ctx context.Context, userID shared.UserID, day string) (*progression.DaySummary, error) {
	var s progression.DaySummary
	var uid string
	err := r.conn.QueryRow(ctx, `
		SELECT user_id, day, satisfied, quests_total, quests_done,
		       streak_after, debuff_applied, closed_at
		FROM day_summaries
		WHERE user_id = $1 AND day = $2
	`, userID.String(), day).Scan(
		&uid,
		&s.Day,
		&s.Satisfied,
		&s.QuestsTotal,
		&s.QuestsDone,
		&s.StreakAfter,
		&s.DebuffApplied,
		&s.ClosedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("progression", "FindDaySummary", shared.ErrNotFound, "day summary not found", nil)
		}
		return nil, classifyErr("FindDaySummary", fmt.Errorf("failed to query day summary: %w", err))
	}
	s.UserID = shared.UserID(uid)
	return &s, nil
}

// ListAbsentSince returns users with no activity after the cutoff whose
// return protocol is INACTIVE.
func (r *ProgressionRepository) ListAbsentSince(ctx context.Context, cutoff time.Time, limit int) ([]*progression.UserProgression, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+progressionColumns+`
		FROM user_progression
		WHERE return_state = 'INACTIVE'
		  AND COALESCE(last_activity_at, updated_at) < $1
		ORDER BY COALESCE(last_activity_at, updated_at)
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, classifyErr("ListAbsentSince", fmt.Errorf("failed to query absent users: %w", err))
	}
	defer rows.Close()

	var states []*progression.UserProgression
	for rows.Next() {
		state, err := scanProgression(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progression row: %w", err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// ListUserIDs pages through all user IDs for maintenance jobs.
func (r *ProgressionRepository) ListUserIDs(ctx context.Context, limit, offset int) ([]shared.UserID, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id FROM user_progression
		ORDER BY user_id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, classifyErr("ListUserIDs", fmt.Errorf("failed to query user IDs: %w", err))
	}
	defer rows.Close()

	var ids []shared.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		ids = append(ids, shared.UserID(id))
	}
	return ids, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func progressionArgs(p *progression.UserProgression) []interface{} {
	return []interface{}{
		p.UserID.String(),
		p.Level.Int(),
		p.TotalXP.Int64(),
		p.CurrentStreak,
		p.LongestStreak,
		p.DebuffActiveUntil,
		string(p.ReturnState),
		p.ReturnDay,
		p.LastActivityAt,
		p.LastClosedDay,
		p.LastEventHash,
		p.UpdatedAt,
	}
}

const updateProgressionSQL = `
	UPDATE user_progression SET
		level = $2,
		total_xp = $3,
		current_streak = $4,
		longest_streak = $5,
		debuff_active_until = $6,
		return_state = $7,
		return_day = $8,
		last_activity_at = $9,
		last_closed_day = $10,
		last_event_hash = $11,
		updated_at = $12
	WHERE user_id = $1
`

// updateProgression writes the state row inside a transaction.
func updateProgression(ctx context.Context, tx pgx.Tx, p *progression.UserProgression) error {
	result, err := tx.Exec(ctx, updateProgressionSQL, progressionArgs(p)...)
	if err != nil {
		return fmt.Errorf("failed to update progression: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrProgressionNotFound
	}
	return nil
}

func updateProgressionQ(ctx context.Context, q *Connection, p *progression.UserProgression) error {
	result, err := q.Exec(ctx, updateProgressionSQL, progressionArgs(p)...)
	if err != nil {
		return fmt.Errorf("failed to update progression: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrProgressionNotFound
	}
	return nil
}

func scanProgression(row pgx.Row) (*progression.UserProgression, error) {
	var (
		p           progression.UserProgression
		userID      string
		level       int
		totalXP     int64
		returnState string
	)
	err := row.Scan(
		&userID,
		&level,
		&totalXP,
		&p.CurrentStreak,
		&p.LongestStreak,
		&p.DebuffActiveUntil,
		&returnState,
		&p.ReturnDay,
		&p.LastActivityAt,
		&p.LastClosedDay,
		&p.LastEventHash,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.UserID = shared.UserID(userID)
	p.Level = shared.Level(level)
	p.TotalXP = shared.XP(totalXP)
	p.ReturnState = progression.ReturnState(returnState)
	return &p, nil
}

// classifyErr maps storage failures to the retryability taxonomy. Domain
// errors pass through untouched; everything else means the database could
// not serve the request.
func classifyErr(op string, err error) error {
	return classifyDomainErr("progression", op, err)
}

func classifyDomainErr(domain, op string, err error) error {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return shared.WrapError(domain, op, shared.ErrStorageUnavailable, "database error", err)
}
