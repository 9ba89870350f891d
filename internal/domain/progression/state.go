package progression

import (
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER PROGRESSION (denormalized state)
// ══════════════════════════════════════════════════════════════════════════════

// ReturnState - фаза протокола возвращения после длительного отсутствия.
type ReturnState string

const (
	ReturnInactive ReturnState = "INACTIVE"
	ReturnOffered  ReturnState = "OFFERED"
	ReturnActive   ReturnState = "ACTIVE"
)

// Параметры протокола возвращения и дебаффа. Пороги читаются из конфигурации
// на уровне приложения; здесь - значения по умолчанию.
const (
	// ReturnOfferThresholdDays - минимальное отсутствие для предложения.
	ReturnOfferThresholdDays = 15

	// ReturnDays - длительность протокола в днях.
	ReturnDays = 3

	// ReturnBootstrapStreak - фиксированный стрик после завершения
	// протокола. Именно 3, а не длительность отсутствия: цель - мягкий
	// разгон, а не восстановление прежнего стрика.
	ReturnBootstrapStreak = 3

	// DefaultDebuffWindow - окно действия штрафного множителя после
	// пропущенного дня.
	DefaultDebuffWindow = 24 * time.Hour
)

// UserProgression - денормализованное состояние одного пользователя.
// Единственный источник истины - журнал событий; эта запись пересчитываема
// и существует ради дешёвого чтения.
type UserProgression struct {
	UserID  shared.UserID
	Level   shared.Level
	TotalXP shared.XP

	CurrentStreak int
	LongestStreak int

	// DebuffActiveUntil - момент истечения дебаффа; nil, если дебафф
	// не наложен. Истечение ленивое: отдельного таймера нет, состояние
	// проверяется при каждом чтении через DebuffActive.
	DebuffActiveUntil *time.Time

	ReturnState ReturnState
	// ReturnDay - текущий день протокола (1..3); 0 вне ACTIVE.
	ReturnDay int

	// LastActivityAt - последнее удовлетворённое ежедневное требование.
	LastActivityAt *time.Time
	// LastClosedDay - ключ последнего закрытого дня ("2006-01-02").
	LastClosedDay string

	// LastEventHash - хеш последнего события журнала (вершина цепочки);
	// GenesisHash, если событий ещё нет.
	LastEventHash string

	UpdatedAt time.Time
}

// NewUserProgression создаёт начальное состояние нового пользователя.
func NewUserProgression(userID shared.UserID, now time.Time) *UserProgression {
	return &UserProgression{
		UserID:        userID,
		Level:         shared.MinLevel,
		TotalXP:       shared.MinXP,
		ReturnState:   ReturnInactive,
		LastEventHash: GenesisHash,
		UpdatedAt:     now,
	}
}

// DebuffActive сообщает, действует ли дебафф в момент now.
func (p *UserProgression) DebuffActive(now time.Time) bool {
	return p.DebuffActiveUntil != nil && now.Before(*p.DebuffActiveUntil)
}

// ExpireDebuff снимает истёкший дебафф. Возвращает true, если дебафф был
// снят именно этим вызовом - тогда вызывающая сторона публикует событие.
func (p *UserProgression) ExpireDebuff(now time.Time) bool {
	if p.DebuffActiveUntil == nil || now.Before(*p.DebuffActiveUntil) {
		return false
	}
	p.DebuffActiveUntil = nil
	return true
}

// ClearDebuff досрочно снимает дебафф (например, выполненным квестом).
func (p *UserProgression) ClearDebuff() bool {
	if p.DebuffActiveUntil == nil {
		return false
	}
	p.DebuffActiveUntil = nil
	return true
}

// ApplyLedgerEvent переносит итог запечатанного события в денормализованное
// состояние. Сами уровни и суммы уже вычислены при создании события.
func (p *UserProgression) ApplyLedgerEvent(ev XPEvent, now time.Time) {
	p.TotalXP = shared.XP(ev.TotalXPAfter)
	p.Level = ev.LevelAfter
	p.LastEventHash = ev.Hash
	p.UpdatedAt = now
}

// RecordActivity отмечает удовлетворённое ежедневное требование.
func (p *UserProgression) RecordActivity(now time.Time) {
	t := now
	p.LastActivityAt = &t
	p.UpdatedAt = now
}

// ──────────────────────────────────────────────────────────────────────────────
// Закрытие дня
// ──────────────────────────────────────────────────────────────────────────────

// DayCloseResult - итог закрытия одного дня.
type DayCloseResult struct {
	Day           string
	Satisfied     bool
	StreakBefore  int
	StreakAfter   int
	StreakBroken  bool
	DebuffApplied bool
	DebuffCleared bool
	DebuffUntil   *time.Time
}

// CloseDay закрывает день dayKey. Идемпотентность по дню обеспечивает
// хранилище (запись о закрытии с уникальным ключом); здесь - только
// переходы состояния:
//
//	день выполнен  -> стрик +1; активный дебафф снимается досрочно
//	день пропущен  -> стрик = 0, дебафф на окно window от closedAt
//
// Пропуск дня при уже активном дебаффе стрик не меняет (он уже 0)
// и окно дебаффа не продлевает.
func (p *UserProgression) CloseDay(dayKey string, satisfied bool, closedAt time.Time, window time.Duration) DayCloseResult {
	result := DayCloseResult{
		Day:          dayKey,
		Satisfied:    satisfied,
		StreakBefore: p.CurrentStreak,
	}

	if satisfied {
		p.CurrentStreak++
		if p.CurrentStreak > p.LongestStreak {
			p.LongestStreak = p.CurrentStreak
		}
		if p.DebuffActive(closedAt) {
			p.DebuffActiveUntil = nil
			result.DebuffCleared = true
		}
	} else {
		if p.CurrentStreak > 0 {
			result.StreakBroken = true
		}
		p.CurrentStreak = 0
		if !p.DebuffActive(closedAt) {
			until := closedAt.Add(window)
			p.DebuffActiveUntil = &until
			result.DebuffApplied = true
			result.DebuffUntil = &until
		}
	}

	p.LastClosedDay = dayKey
	p.UpdatedAt = closedAt
	result.StreakAfter = p.CurrentStreak
	return result
}

// ──────────────────────────────────────────────────────────────────────────────
// Протокол возвращения
// ──────────────────────────────────────────────────────────────────────────────

// AbsenceDays возвращает полные дни с последней активности.
// Для пользователя без активности отсчёт идёт от UpdatedAt.
func (p *UserProgression) AbsenceDays(now time.Time) int {
	since := p.UpdatedAt
	if p.LastActivityAt != nil {
		since = *p.LastActivityAt
	}
	if since.IsZero() {
		return 0
	}
	return int(now.Sub(since).Hours() / 24)
}

// OfferReturn переводит INACTIVE -> OFFERED, если отсутствие достигло порога.
// Повторный вызов в OFFERED - no-op: предложение действует до ответа.
func (p *UserProgression) OfferReturn(now time.Time) error {
	switch p.ReturnState {
	case ReturnOffered:
		return nil
	case ReturnActive:
		return shared.ErrReturnNotOffered
	}
	if p.AbsenceDays(now) < ReturnOfferThresholdDays {
		return shared.ErrAbsenceTooShort
	}
	p.ReturnState = ReturnOffered
	p.UpdatedAt = now
	return nil
}

// AcceptReturn переводит OFFERED -> ACTIVE, день 1. Стрик обнуляется:
// протокол начинается с чистого листа, бонус даётся только за завершение.
func (p *UserProgression) AcceptReturn(now time.Time) error {
	if p.ReturnState != ReturnOffered {
		return shared.ErrReturnNotOffered
	}
	p.ReturnState = ReturnActive
	p.ReturnDay = 1
	p.CurrentStreak = 0
	p.UpdatedAt = now
	return nil
}

// DeclineReturn отклоняет предложение. Отклонить можно либо само предложение
// (OFFERED), либо протокол в первый день; со второго дня выход закрыт.
func (p *UserProgression) DeclineReturn(now time.Time) error {
	switch {
	case p.ReturnState == ReturnOffered:
	case p.ReturnState == ReturnActive && p.ReturnDay == 1:
	default:
		if p.ReturnState == ReturnActive {
			return shared.ErrReturnDeclineDenied
		}
		return shared.ErrReturnNotOffered
	}
	p.ReturnState = ReturnInactive
	p.ReturnDay = 0
	p.UpdatedAt = now
	return nil
}

// AdvanceReturn засчитывает выполненный день протокола. Завершение третьего
// дня закрывает протокол и выставляет фиксированный стартовый стрик.
// Возвращает true при завершении протокола.
func (p *UserProgression) AdvanceReturn(now time.Time) (bool, error) {
	if p.ReturnState != ReturnActive {
		return false, shared.ErrReturnNotActive
	}
	if p.ReturnDay >= ReturnDays {
		p.ReturnState = ReturnInactive
		p.ReturnDay = 0
		p.CurrentStreak = ReturnBootstrapStreak
		if p.CurrentStreak > p.LongestStreak {
			p.LongestStreak = p.CurrentStreak
		}
		p.UpdatedAt = now
		return true, nil
	}
	p.ReturnDay++
	p.UpdatedAt = now
	return false, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Итог дня
// ──────────────────────────────────────────────────────────────────────────────

// DaySummary - запись о закрытом дне. Уникальность (UserID, Day) в хранилище
// делает закрытие дня идемпотентным.
type DaySummary struct {
	UserID        shared.UserID
	Day           string
	Satisfied     bool
	QuestsTotal   int
	QuestsDone    int
	StreakAfter   int
	DebuffApplied bool
	ClosedAt      time.Time
}
