package progression

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP EVENT (append-only, hash-chained)
// ══════════════════════════════════════════════════════════════════════════════

// GenesisHash - фиксированный страж для первого события пользователя.
const GenesisHash = "genesis"

// XPEvent - одна неизменяемая запись журнала XP. События никогда не
// обновляются и не удаляются: коррекция - это новое компенсирующее событие.
type XPEvent struct {
	// ID - идентификатор события (UUID).
	ID string

	// UserID - владелец цепочки.
	UserID shared.UserID

	// Source - источник начисления (quest, streak_bonus, correction...).
	Source string

	// SourceID - идентификатор источника (например, ID инстанса квеста).
	SourceID string

	// BaseAmount - сумма до модификаторов (со знаком: removal < 0).
	BaseAmount int64

	// FinalAmount - сумма после стека модификаторов.
	FinalAmount int64

	// LevelBefore/LevelAfter - уровень до и после события.
	LevelBefore shared.Level
	LevelAfter  shared.Level

	// TotalXPBefore/TotalXPAfter - суммарный XP до и после.
	// TotalXPAfter = max(0, TotalXPBefore + FinalAmount); пол на нуле
	// фиксируется в самом событии, а не поглощается молча.
	TotalXPBefore int64
	TotalXPAfter  int64

	// Hash - хеш события; PreviousHash - хеш предыдущего события
	// пользователя (или GenesisHash для первого).
	Hash         string
	PreviousHash string

	// Modifiers - применённые модификаторы в порядке применения.
	Modifiers []Modifier

	// Description - человекочитаемое описание.
	Description string

	// CreatedAt - момент создания (участвует в хеше).
	CreatedAt time.Time
}

// Floored сообщает, сработал ли пол на нуле при вычитании.
func (e XPEvent) Floored() bool {
	return e.TotalXPBefore+e.FinalAmount < 0
}

// IsRemoval сообщает, является ли событие снятием XP.
func (e XPEvent) IsRemoval() bool {
	return e.FinalAmount < 0
}

// ComputeHash вычисляет хеш события из канонического представления полей,
// перечисленных в контракте цепочки: userId, finalAmount, totalXPAfter,
// previousHash, createdAt. BLAKE2b-256, hex.
func ComputeHash(userID shared.UserID, finalAmount, totalXPAfter int64, previousHash string, createdAt time.Time) string {
	payload := userID.String() + "|" +
		strconv.FormatInt(finalAmount, 10) + "|" +
		strconv.FormatInt(totalXPAfter, 10) + "|" +
		previousHash + "|" +
		createdAt.UTC().Format(time.RFC3339Nano)

	sum := blake2b.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Seal заполняет Hash события из его собственных полей.
func (e *XPEvent) Seal() {
	e.Hash = ComputeHash(e.UserID, e.FinalAmount, e.TotalXPAfter, e.PreviousHash, e.CreatedAt)
}

// VerifyHash перепроверяет хеш события по сохранённым полям.
func (e XPEvent) VerifyHash() bool {
	return e.Hash == ComputeHash(e.UserID, e.FinalAmount, e.TotalXPAfter, e.PreviousHash, e.CreatedAt)
}

// ══════════════════════════════════════════════════════════════════════════════
// CHAIN VERIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// ChainReport - результат проверки цепочки одного пользователя.
type ChainReport struct {
	UserID  shared.UserID
	Events  int
	Valid   bool
	BadID   string // ID первого повреждённого события
	Details string
}

// VerifyChain проходит события от старых к новым, перевычисляя каждый хеш
// и проверяя сцепку previousHash. Диагностика, не на горячем пути;
// повреждённая цепочка никогда не чинится автоматически.
func VerifyChain(userID shared.UserID, events []XPEvent) ChainReport {
	report := ChainReport{UserID: userID, Events: len(events), Valid: true}

	previous := GenesisHash
	for i, ev := range events {
		if ev.PreviousHash != previous {
			report.Valid = false
			report.BadID = ev.ID
			report.Details = fmt.Sprintf("event %d: previous hash mismatch", i)
			return report
		}
		if !ev.VerifyHash() {
			report.Valid = false
			report.BadID = ev.ID
			report.Details = fmt.Sprintf("event %d: stored hash does not match recomputed hash", i)
			return report
		}
		if ev.TotalXPAfter < 0 {
			report.Valid = false
			report.BadID = ev.ID
			report.Details = fmt.Sprintf("event %d: negative XP total", i)
			return report
		}
		previous = ev.Hash
	}

	return report
}

// Err возвращает ошибку LedgerCorrupted для невалидного отчёта.
func (r ChainReport) Err() error {
	if r.Valid {
		return nil
	}
	return shared.WrapError("progression", "VerifyChain", shared.ErrLedgerCorrupted,
		fmt.Sprintf("user %s event %s: %s", r.UserID, r.BadID, r.Details), nil)
}
