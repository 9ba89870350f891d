// Package postgres implements the PostgreSQL persistence layer.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/habitquest/habit-quest-hub/internal/domain/quest"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TARGET REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// TargetRepository implements quest.TargetRepository for PostgreSQL.
type TargetRepository struct {
	conn *Connection
}

// NewTargetRepository creates a new TargetRepository.
func NewTargetRepository(conn *Connection) *TargetRepository {
	return &TargetRepository{conn: conn}
}

const targetColumns = `
	user_id, template_id, base_target, adapted_target, manual_override,
	completion_rate, average_achievement, last_adapted_at, updated_at
`

// Find returns the (user, template) adapted target.
func (r *TargetRepository) Find(ctx context.Context, userID shared.UserID, templateID shared.TemplateID) (*quest.AdaptedTarget, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+targetColumns+`
		FROM adapted_targets
		WHERE user_id = $1 AND template_id = $2
	`, userID.String(), templateID.String())

	target, err := scanTarget(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrTargetNotFound
		}
		return nil, classifyDomainErr("quest", "FindTarget", err)
	}
	return target, nil
}

// FindOrCreate returns the target, creating it at the template's base value.
func (r *TargetRepository) FindOrCreate(ctx context.Context, userID shared.UserID, templateID shared.TemplateID, baseTarget float64, now time.Time) (*quest.AdaptedTarget, error) {
	target, err := r.Find(ctx, userID, templateID)
	if err == nil {
		return target, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	target = quest.NewAdaptedTarget(userID, templateID, baseTarget, now)
	_, err = r.conn.Exec(ctx, `
		INSERT INTO adapted_targets (`+targetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, template_id) DO NOTHING
	`, targetArgs(target)...)
	if err != nil {
		return nil, classifyDomainErr("quest", "FindOrCreateTarget", fmt.Errorf("failed to insert target: %w", err))
	}

	return r.Find(ctx, userID, templateID)
}

// Save upserts the adapted target.
func (r *TargetRepository) Save(ctx context.Context, target *quest.AdaptedTarget) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO adapted_targets (`+targetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, template_id) DO UPDATE SET
			base_target = EXCLUDED.base_target,
			adapted_target = EXCLUDED.adapted_target,
			manual_override = EXCLUDED.manual_override,
			completion_rate = EXCLUDED.completion_rate,
			average_achievement = EXCLUDED.average_achievement,
			last_adapted_at = EXCLUDED.last_adapted_at,
			updated_at = EXCLUDED.updated_at
	`, targetArgs(target)...)
	if err != nil {
		return classifyDomainErr("quest", "SaveTarget", fmt.Errorf("failed to save target: %w", err))
	}
	return nil
}

func targetArgs(t *quest.AdaptedTarget) []interface{} {
	return []interface{}{
		t.UserID.String(),
		t.TemplateID.String(),
		t.BaseTarget,
		t.AdaptedTarget,
		t.ManualOverride,
		t.CompletionRate,
		t.AverageAchievement,
		t.LastAdaptedAt,
		t.UpdatedAt,
	}
}

func scanTarget(row pgx.Row) (*quest.AdaptedTarget, error) {
	var (
		target     quest.AdaptedTarget
		userID     string
		templateID string
	)
	err := row.Scan(
		&userID,
		&templateID,
		&target.BaseTarget,
		&target.AdaptedTarget,
		&target.ManualOverride,
		&target.CompletionRate,
		&target.AverageAchievement,
		&target.LastAdaptedAt,
		&target.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	target.UserID = shared.UserID(userID)
	target.TemplateID = shared.TemplateID(templateID)
	return &target, nil
}
