package progression

import (
	"time"

	"github.com/google/uuid"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT CONSTRUCTION
// ══════════════════════════════════════════════════════════════════════════════

// RecordInput - входные данные для нового события журнала.
type RecordInput struct {
	Source      string
	SourceID    string
	BaseAmount  int64
	Modifiers   []Modifier
	Description string
}

// NextEvent строит запечатанное событие поверх текущего состояния:
// применяет стек модификаторов, пересчитывает сумму с полом на нуле
// и уровень от новой суммы, сцепляет хеш с вершиной цепочки состояния.
// Состояние не изменяется - перенос делает ApplyLedgerEvent после
// успешной записи.
func NextEvent(state *UserProgression, calc *Calculator, in RecordInput, now time.Time) (XPEvent, error) {
	if in.BaseAmount == 0 {
		return XPEvent{}, shared.ErrZeroBaseAmount
	}
	if err := ValidateModifiers(in.Modifiers); err != nil {
		return XPEvent{}, err
	}

	finalAmount := ApplySigned(in.BaseAmount, in.Modifiers)
	totalBefore := state.TotalXP.Int64()
	totalAfter := state.TotalXP.Add(finalAmount).Int64()

	ev := XPEvent{
		ID:            uuid.NewString(),
		UserID:        state.UserID,
		Source:        in.Source,
		SourceID:      in.SourceID,
		BaseAmount:    in.BaseAmount,
		FinalAmount:   finalAmount,
		LevelBefore:   state.Level,
		LevelAfter:    calc.LevelOf(totalAfter),
		TotalXPBefore: totalBefore,
		TotalXPAfter:  totalAfter,
		PreviousHash:  state.LastEventHash,
		Modifiers:     in.Modifiers,
		Description:   in.Description,
		CreatedAt:     now.UTC(),
	}
	ev.Seal()
	return ev, nil
}
