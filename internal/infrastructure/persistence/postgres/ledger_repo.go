// Package postgres implements the PostgreSQL persistence layer.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements progression.LedgerRepository for PostgreSQL.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

const xpEventColumns = `
	id, user_id, source, source_id, base_amount, final_amount,
	level_before, level_after, total_xp_before, total_xp_after,
	hash, previous_hash, modifiers, description, created_at
`

// AppendEvent appends one ledger event and the matching denormalized state
// in a single transaction.
//
// The progression row is locked FOR UPDATE first, then the chain tip is
// revalidated against the event's previous hash. The event was computed
// from an unlocked read; if another append won the race in between, the tip
// has moved and the caller gets ErrConcurrencyConflict to recompute from
// fresh state. The unique (user_id, previous_hash) index backs the same
// guarantee at the storage level.
func (r *LedgerRepository) AppendEvent(ctx context.Context, ev progression.XPEvent, state *progression.UserProgression) error {
	modifiersJSON, err := json.Marshal(ev.Modifiers)
	if err != nil {
		return fmt.Errorf("failed to marshal modifiers: %w", err)
	}

	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var tip string
		err := tx.QueryRow(ctx,
			`SELECT last_event_hash FROM user_progression WHERE user_id = $1 FOR UPDATE`,
			ev.UserID.String(),
		).Scan(&tip)
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrProgressionNotFound
			}
			return fmt.Errorf("failed to lock progression row: %w", err)
		}

		if tip != ev.PreviousHash {
			return shared.ErrChainTipMoved
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO xp_events (`+xpEventColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`,
			ev.ID,
			ev.UserID.String(),
			ev.Source,
			ev.SourceID,
			ev.BaseAmount,
			ev.FinalAmount,
			ev.LevelBefore.Int(),
			ev.LevelAfter.Int(),
			ev.TotalXPBefore,
			ev.TotalXPAfter,
			ev.Hash,
			ev.PreviousHash,
			modifiersJSON,
			ev.Description,
			ev.CreatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.ErrChainTipMoved
			}
			return fmt.Errorf("failed to insert xp event: %w", err)
		}

		return updateProgression(ctx, tx, state)
	})
	if err != nil {
		return classifyErr("AppendEvent", err)
	}
	return nil
}

// LatestHash returns the user's chain tip (GenesisHash for no events).
func (r *LedgerRepository) LatestHash(ctx context.Context, userID shared.UserID) (string, error) {
	var tip string
	err := r.conn.QueryRow(ctx,
		`SELECT last_event_hash FROM user_progression WHERE user_id = $1`,
		userID.String(),
	).Scan(&tip)
	if err != nil {
		if IsNoRows(err) {
			return progression.GenesisHash, nil
		}
		return "", classifyErr("LatestHash", fmt.Errorf("failed to query chain tip: %w", err))
	}
	return tip, nil
}

// ListEvents returns the user's events oldest first.
func (r *LedgerRepository) ListEvents(ctx context.Context, userID shared.UserID) ([]progression.XPEvent, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+xpEventColumns+`
		FROM xp_events
		WHERE user_id = $1
		ORDER BY created_at, id
	`, userID.String())
	if err != nil {
		return nil, classifyErr("ListEvents", fmt.Errorf("failed to query events: %w", err))
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListEventsSince returns the user's events after the given time, oldest first.
func (r *LedgerRepository) ListEventsSince(ctx context.Context, userID shared.UserID, since time.Time) ([]progression.XPEvent, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+xpEventColumns+`
		FROM xp_events
		WHERE user_id = $1 AND created_at > $2
		ORDER BY created_at, id
	`, userID.String(), since)
	if err != nil {
		return nil, classifyErr("ListEventsSince", fmt.Errorf("failed to query events: %w", err))
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]progression.XPEvent, error) {
	var events []progression.XPEvent
	for rows.Next() {
		var (
			ev            progression.XPEvent
			userID        string
			levelBefore   int
			levelAfter    int
			modifiersJSON []byte
		)
		err := rows.Scan(
			&ev.ID,
			&userID,
			&ev.Source,
			&ev.SourceID,
			&ev.BaseAmount,
			&ev.FinalAmount,
			&levelBefore,
			&levelAfter,
			&ev.TotalXPBefore,
			&ev.TotalXPAfter,
			&ev.Hash,
			&ev.PreviousHash,
			&modifiersJSON,
			&ev.Description,
			&ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		ev.UserID = shared.UserID(userID)
		ev.LevelBefore = shared.Level(levelBefore)
		ev.LevelAfter = shared.Level(levelAfter)
		if len(modifiersJSON) > 0 {
			if err := json.Unmarshal(modifiersJSON, &ev.Modifiers); err != nil {
				return nil, fmt.Errorf("failed to unmarshal modifiers: %w", err)
			}
		}
		// Hash recomputation compares RFC3339Nano representations; keep the
		// stored instant in UTC the way it was sealed.
		ev.CreatedAt = ev.CreatedAt.UTC()

		events = append(events, ev)
	}
	return events, rows.Err()
}
