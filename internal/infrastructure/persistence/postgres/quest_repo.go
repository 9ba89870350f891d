// Package postgres implements the PostgreSQL persistence layer.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/habitquest/habit-quest-hub/internal/domain/quest"
	"github.com/habitquest/habit-quest-hub/internal/domain/requirement"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// TemplateRepository implements quest.TemplateRepository for PostgreSQL.
type TemplateRepository struct {
	conn *Connection
}

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(conn *Connection) *TemplateRepository {
	return &TemplateRepository{conn: conn}
}

const templateColumns = `
	id, title, description, requirement, base_xp, base_target,
	period_type, core, allow_partial, min_partial_percent, created_at
`

// Find returns a template by ID.
func (r *TemplateRepository) Find(ctx context.Context, id shared.TemplateID) (*quest.Template, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM quest_templates
		WHERE id = $1
	`, id.String())

	tmpl, err := scanTemplate(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrTemplateNotFound
		}
		return nil, classifyDomainErr("quest", "FindTemplate", err)
	}
	return tmpl, nil
}

// List returns all templates.
func (r *TemplateRepository) List(ctx context.Context) ([]*quest.Template, error) {
	return r.list(ctx, `SELECT `+templateColumns+` FROM quest_templates ORDER BY id`)
}

// ListCore returns all core templates.
func (r *TemplateRepository) ListCore(ctx context.Context) ([]*quest.Template, error) {
	return r.list(ctx, `SELECT `+templateColumns+` FROM quest_templates WHERE core = TRUE ORDER BY id`)
}

func (r *TemplateRepository) list(ctx context.Context, query string) ([]*quest.Template, error) {
	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, classifyDomainErr("quest", "ListTemplates", fmt.Errorf("failed to query templates: %w", err))
	}
	defer rows.Close()

	var templates []*quest.Template
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template row: %w", err)
		}
		templates = append(templates, tmpl)
	}
	return templates, rows.Err()
}

// Save upserts a template.
func (r *TemplateRepository) Save(ctx context.Context, tmpl *quest.Template) error {
	requirementJSON, err := requirement.Marshal(tmpl.Requirement)
	if err != nil {
		return fmt.Errorf("failed to marshal requirement: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO quest_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			requirement = EXCLUDED.requirement,
			base_xp = EXCLUDED.base_xp,
			base_target = EXCLUDED.base_target,
			period_type = EXCLUDED.period_type,
			core = EXCLUDED.core,
			allow_partial = EXCLUDED.allow_partial,
			min_partial_percent = EXCLUDED.min_partial_percent
	`,
		tmpl.ID.String(),
		tmpl.Title,
		tmpl.Description,
		requirementJSON,
		tmpl.BaseXP,
		tmpl.BaseTarget,
		string(tmpl.PeriodType),
		tmpl.Core,
		tmpl.AllowPartial,
		tmpl.MinPartialPercent,
		tmpl.CreatedAt,
	)
	if err != nil {
		return classifyDomainErr("quest", "SaveTemplate", fmt.Errorf("failed to save template: %w", err))
	}
	return nil
}

func scanTemplate(row pgx.Row) (*quest.Template, error) {
	var (
		tmpl            quest.Template
		id              string
		requirementJSON []byte
		periodType      string
	)
	err := row.Scan(
		&id,
		&tmpl.Title,
		&tmpl.Description,
		&requirementJSON,
		&tmpl.BaseXP,
		&tmpl.BaseTarget,
		&periodType,
		&tmpl.Core,
		&tmpl.AllowPartial,
		&tmpl.MinPartialPercent,
		&tmpl.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	expr, err := requirement.Parse(requirementJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to parse requirement for template %s: %w", id, err)
	}

	tmpl.ID = shared.TemplateID(id)
	tmpl.Requirement = expr
	tmpl.PeriodType = shared.PeriodType(periodType)
	return &tmpl, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// INSTANCE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// InstanceRepository implements quest.InstanceRepository for PostgreSQL.
type InstanceRepository struct {
	conn *Connection
}

// NewInstanceRepository creates a new InstanceRepository.
func NewInstanceRepository(conn *Connection) *InstanceRepository {
	return &InstanceRepository{conn: conn}
}

const instanceColumns = `
	id, template_id, user_id, period_type, period_key, status,
	current_value, target_value, completion_percent, partial,
	xp_awarded, xp_event_id, completed_at, created_at, updated_at
`

// Find returns an instance by ID.
func (r *InstanceRepository) Find(ctx context.Context, id string) (*quest.Instance, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+instanceColumns+`
		FROM quest_instances
		WHERE id = $1
	`, id)

	inst, err := scanInstance(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrInstanceNotFound
		}
		return nil, classifyDomainErr("quest", "FindInstance", err)
	}
	return inst, nil
}

// FindByPeriod returns the (user, template) instance in a period.
func (r *InstanceRepository) FindByPeriod(ctx context.Context, userID shared.UserID, templateID shared.TemplateID, period shared.Period) (*quest.Instance, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+instanceColumns+`
		FROM quest_instances
		WHERE user_id = $1 AND template_id = $2 AND period_type = $3 AND period_key = $4
	`, userID.String(), templateID.String(), string(period.Type), period.Key)

	inst, err := scanInstance(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrInstanceNotFound
		}
		return nil, classifyDomainErr("quest", "FindInstance", err)
	}
	return inst, nil
}

// ListByUserPeriod returns all of the user's instances in a period.
func (r *InstanceRepository) ListByUserPeriod(ctx context.Context, userID shared.UserID, period shared.Period) ([]*quest.Instance, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+instanceColumns+`
		FROM quest_instances
		WHERE user_id = $1 AND period_type = $2 AND period_key = $3
		ORDER BY template_id
	`, userID.String(), string(period.Type), period.Key)
	if err != nil {
		return nil, classifyDomainErr("quest", "ListInstances", fmt.Errorf("failed to query instances: %w", err))
	}
	defer rows.Close()

	return collectInstances(rows)
}

// ListHistory returns finalized (user, template) instances in a time range,
// oldest first. This feeds target adaptation.
func (r *InstanceRepository) ListHistory(ctx context.Context, userID shared.UserID, templateID shared.TemplateID, rng shared.TimeRange) ([]*quest.Instance, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+instanceColumns+`
		FROM quest_instances
		WHERE user_id = $1 AND template_id = $2
		  AND completed_at IS NOT NULL
		  AND completed_at >= $3 AND completed_at <= $4
		ORDER BY completed_at
	`, userID.String(), templateID.String(), rng.From, rng.To)
	if err != nil {
		return nil, classifyDomainErr("quest", "ListHistory", fmt.Errorf("failed to query history: %w", err))
	}
	defer rows.Close()

	return collectInstances(rows)
}

// Save upserts an instance.
func (r *InstanceRepository) Save(ctx context.Context, inst *quest.Instance) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO quest_instances (`+instanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_value = EXCLUDED.current_value,
			target_value = EXCLUDED.target_value,
			completion_percent = EXCLUDED.completion_percent,
			partial = EXCLUDED.partial,
			xp_awarded = EXCLUDED.xp_awarded,
			xp_event_id = EXCLUDED.xp_event_id,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`,
		inst.ID,
		inst.TemplateID.String(),
		inst.UserID.String(),
		string(inst.Period.Type),
		inst.Period.Key,
		string(inst.Status),
		inst.CurrentValue,
		inst.TargetValue,
		inst.CompletionPercent,
		inst.Partial,
		inst.XPAwarded,
		inst.XPEventID,
		inst.CompletedAt,
		inst.CreatedAt,
		inst.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			// The same (user, template, period) was instantiated twice.
			return shared.WrapError("quest", "SaveInstance", shared.ErrAlreadyExists, "instance already exists for period", err)
		}
		return classifyDomainErr("quest", "SaveInstance", fmt.Errorf("failed to save instance: %w", err))
	}
	return nil
}

func collectInstances(rows pgx.Rows) ([]*quest.Instance, error) {
	var instances []*quest.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance row: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

func scanInstance(row pgx.Row) (*quest.Instance, error) {
	var (
		inst       quest.Instance
		templateID string
		userID     string
		periodType string
		status     string
	)
	err := row.Scan(
		&inst.ID,
		&templateID,
		&userID,
		&periodType,
		&inst.Period.Key,
		&status,
		&inst.CurrentValue,
		&inst.TargetValue,
		&inst.CompletionPercent,
		&inst.Partial,
		&inst.XPAwarded,
		&inst.XPEventID,
		&inst.CompletedAt,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inst.TemplateID = shared.TemplateID(templateID)
	inst.UserID = shared.UserID(userID)
	inst.Period.Type = shared.PeriodType(periodType)
	inst.Status = quest.Status(status)
	return &inst, nil
}
