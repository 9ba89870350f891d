// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/progression"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESSION QUERY
// Возвращает снимок прогрессии пользователя: уровень, XP, стрик, статус
// дебаффа и протокола возвращения. Чтение без блокировок: снимок может
// отставать от параллельной записи на миллисекунды - это допустимо.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressionSnapshot - кэшируемый снимок состояния прогрессии.
type ProgressionSnapshot struct {
	UserID        string     `json:"user_id"`
	Level         int        `json:"level"`
	LevelTitle    string     `json:"level_title"`
	TotalXP       int64      `json:"total_xp"`
	ProgressPct   int        `json:"progress_pct"`
	CurrentStreak int        `json:"current_streak"`
	LongestStreak int        `json:"longest_streak"`
	DebuffActive  bool       `json:"debuff_active"`
	DebuffUntil   *time.Time `json:"debuff_until,omitempty"`
	ReturnState   string     `json:"return_state"`
	ReturnDay     int        `json:"return_day,omitempty"`
	AsOf          time.Time  `json:"as_of"`
}

// SnapshotCache - порт кэша снимков (Redis). Промах кэша не является
// ошибкой запроса.
type SnapshotCache interface {
	Get(ctx context.Context, userID shared.UserID) (*ProgressionSnapshot, error)
	Set(ctx context.Context, snapshot *ProgressionSnapshot) error
	Delete(ctx context.Context, userID shared.UserID) error
}

// GetProgressionQuery содержит параметры запроса.
type GetProgressionQuery struct {
	// UserID - идентификатор пользователя.
	UserID string

	// SkipCache - прочитать напрямую из хранилища.
	SkipCache bool
}

// Validate проверяет корректность параметров.
func (q GetProgressionQuery) Validate() error {
	if _, err := shared.NewUserID(q.UserID); err != nil {
		return fmt.Errorf("get_progression: %w", err)
	}
	return nil
}

// GetProgressionHandler обрабатывает запрос прогрессии.
type GetProgressionHandler struct {
	progressions progression.ProgressionRepository
	calc         *progression.Calculator
	cache        SnapshotCache // nil = без кэша
}

// NewGetProgressionHandler создаёт обработчик запроса.
func NewGetProgressionHandler(
	progressions progression.ProgressionRepository,
	calc *progression.Calculator,
	cache SnapshotCache,
) *GetProgressionHandler {
	return &GetProgressionHandler{
		progressions: progressions,
		calc:         calc,
		cache:        cache,
	}
}

// Handle выполняет запрос.
func (h *GetProgressionHandler) Handle(ctx context.Context, q GetProgressionQuery) (*ProgressionSnapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	userID := shared.UserID(q.UserID)
	now := time.Now().UTC()

	if h.cache != nil && !q.SkipCache {
		if snapshot, err := h.cache.Get(ctx, userID); err == nil && snapshot != nil {
			// Истечение дебаффа проверяется и на кэшированном снимке.
			if snapshot.DebuffActive && snapshot.DebuffUntil != nil && !now.Before(*snapshot.DebuffUntil) {
				snapshot.DebuffActive = false
			}
			return snapshot, nil
		}
	}

	state, err := h.progressions.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_progression: failed to load progression: %w", err)
	}

	snapshot := &ProgressionSnapshot{
		UserID:        q.UserID,
		Level:         state.Level.Int(),
		LevelTitle:    state.Level.Title(),
		TotalXP:       state.TotalXP.Int64(),
		ProgressPct:   h.calc.ProgressToNext(state.TotalXP.Int64()),
		CurrentStreak: state.CurrentStreak,
		LongestStreak: state.LongestStreak,
		DebuffActive:  state.DebuffActive(now),
		DebuffUntil:   state.DebuffActiveUntil,
		ReturnState:   string(state.ReturnState),
		ReturnDay:     state.ReturnDay,
		AsOf:          now,
	}

	if h.cache != nil {
		_ = h.cache.Set(ctx, snapshot)
	}
	return snapshot, nil
}
