package quest

import (
	"context"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY PORTS
// ══════════════════════════════════════════════════════════════════════════════

// TemplateRepository - порт шаблонов квестов.
type TemplateRepository interface {
	Find(ctx context.Context, id shared.TemplateID) (*Template, error)
	List(ctx context.Context) ([]*Template, error)
	ListCore(ctx context.Context) ([]*Template, error)
	Save(ctx context.Context, tmpl *Template) error
}

// InstanceRepository - порт инстансов квестов.
type InstanceRepository interface {
	Find(ctx context.Context, id string) (*Instance, error)

	// FindByPeriod возвращает инстанс пары (user, template) в периоде.
	FindByPeriod(ctx context.Context, userID shared.UserID, templateID shared.TemplateID, period shared.Period) (*Instance, error)

	// ListByUserPeriod возвращает все инстансы пользователя в периоде.
	ListByUserPeriod(ctx context.Context, userID shared.UserID, period shared.Period) ([]*Instance, error)

	// ListHistory возвращает финализированные инстансы пары (user, template)
	// за интервал - источник данных адаптации целей.
	ListHistory(ctx context.Context, userID shared.UserID, templateID shared.TemplateID, rng shared.TimeRange) ([]*Instance, error)

	Save(ctx context.Context, inst *Instance) error
}

// TargetRepository - порт адаптивных целей.
type TargetRepository interface {
	Find(ctx context.Context, userID shared.UserID, templateID shared.TemplateID) (*AdaptedTarget, error)

	// FindOrCreate возвращает цель, создавая её с базовым значением шаблона.
	FindOrCreate(ctx context.Context, userID shared.UserID, templateID shared.TemplateID, baseTarget float64, now time.Time) (*AdaptedTarget, error)

	Save(ctx context.Context, target *AdaptedTarget) error
}
