package progression

import (
	"context"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY PORTS
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository - порт журнала XP-событий.
//
// AppendEvent обязан атомарно, в одной транзакции:
//  1. взять блокировку строки прогрессии пользователя (row lock);
//  2. перепроверить, что вершина цепочки равна ev.PreviousHash,
//     иначе вернуть ErrConcurrencyConflict;
//  3. записать событие и обновлённое денормализованное состояние.
//
// Сериализацию на пользователя даёт именно блокировка в хранилище,
// а не мьютекс в процессе: приложение может работать в несколько реплик.
type LedgerRepository interface {
	AppendEvent(ctx context.Context, ev XPEvent, state *UserProgression) error

	// LatestHash возвращает вершину цепочки пользователя
	// (GenesisHash, если событий нет).
	LatestHash(ctx context.Context, userID shared.UserID) (string, error)

	// ListEvents возвращает события пользователя от старых к новым.
	ListEvents(ctx context.Context, userID shared.UserID) ([]XPEvent, error)

	// ListEventsSince возвращает события после отметки времени.
	ListEventsSince(ctx context.Context, userID shared.UserID, since time.Time) ([]XPEvent, error)
}

// ProgressionRepository - порт денормализованного состояния.
type ProgressionRepository interface {
	Find(ctx context.Context, userID shared.UserID) (*UserProgression, error)

	// FindOrCreate возвращает состояние, создавая начальное при отсутствии.
	FindOrCreate(ctx context.Context, userID shared.UserID, now time.Time) (*UserProgression, error)

	// Save сохраняет состояние без записи в журнал (стрик, дебафф,
	// протокол возвращения - изменения, не порождающие XP-событий).
	Save(ctx context.Context, p *UserProgression) error

	// SaveDaySummary записывает итог закрытого дня.
	// Повтор для того же (user, day) возвращает ErrDayAlreadyClosed.
	SaveDaySummary(ctx context.Context, s DaySummary) error

	FindDaySummary(ctx context.Context, userID shared.UserID, day string) (*DaySummary, error)

	// ListAbsentSince возвращает пользователей без активности после cutoff,
	// у которых протокол возвращения в состоянии INACTIVE.
	ListAbsentSince(ctx context.Context, cutoff time.Time, limit int) ([]*UserProgression, error)

	// ListUserIDs перечисляет пользователей для обслуживающих задач.
	ListUserIDs(ctx context.Context, limit, offset int) ([]shared.UserID, error)
}
