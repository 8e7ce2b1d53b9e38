package ai

import (
	"math/rand"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
	"github.com/mikkokallio/goblin-tactics/internal/engine"
)

// KnightAI - скриптовый рыцарь. Приоритеты сверху вниз: выжить в
// шторме, добить соседа, исполнить граальную миссию, преследовать
// видимых, прочесать память, разведать карту. Рыцари знают положение
// грааля с самого начала - это их рейд.
type KnightAI struct {
	rng *rand.Rand
}

func NewKnightAI(rng *rand.Rand) *KnightAI {
	return &KnightAI{rng: rng}
}

func (k *KnightAI) Decide(view *engine.TurnView, u *domain.Unit) (domain.ActionType, error) {
	// 1. Шторм важнее любых планов.
	if act, ok := stormEscape(view, u); ok {
		return act, nil
	}

	// 2. Враг на соседней клетке - бьем (движок выберет самого битого).
	if len(view.Field.AdjacentEnemies(u)) > 0 {
		return domain.ActionAttack, nil
	}

	// 3. Граальная миссия.
	if view.Pressure.GrailActive {
		if act, ok := k.grailMission(view, u); ok {
			return act, nil
		}
	}

	// 4. Преследуем ближайшего врага из сети знаний.
	if enemy := nearestKnownEnemy(view, u); enemy != nil {
		if act, ok := stepToward(view, u, enemy.Pos); ok {
			return act, nil
		}
	}

	// 5. Идем к последней виденной позиции врага, пока след не остыл.
	if pos, ok := rememberedTarget(view, u, 10); ok {
		if act, ok := stepToward(view, u, pos); ok {
			return act, nil
		}
	}

	// 6. Разведка фронтира.
	if act, ok := exploreStep(view, u); ok {
		return act, nil
	}

	// 7. Разведывать нечего - слоняемся, чтобы не стоять мишенью.
	if act, ok := driftStep(view, u, k.rng); ok {
		return act, nil
	}

	return domain.ActionHold, nil
}

// grailMission - поведение в режиме грааля. false, если миссия
// не дает юниту приказа и решает общий порядок приоритетов.
func (k *KnightAI) grailMission(view *engine.TurnView, u *domain.Unit) (domain.ActionType, bool) {
	carrierID := view.Pressure.GrailCarrier

	// Носильщик тащит грааль к эвакуации кратчайшим известным путем.
	// Пока карта не разведана, идет напролом по азимуту.
	if carrierID == u.ID {
		if exit, ok := nearestExtraction(view, u.Pos); ok {
			if act, ok := marchToward(view, u, exit); ok {
				return act, true
			}
		}
		return domain.ActionHold, false // дорога не прощупывается - пусть разведка ищет обход
	}

	// Грааль на земле: ближайшая задача - добраться до него.
	// Рыцари знают точку с начала рейда, даже не видя ее.
	if carrierID < 0 {
		if act, ok := marchToward(view, u, view.Pressure.GrailPos); ok {
			return act, true
		}
		return domain.ActionHold, false
	}

	carrier := view.Field.Unit(carrierID)
	if carrier == nil || !carrier.Alive {
		return domain.ActionHold, false
	}

	// Стоим у носильщика на пути - уступаем дорогу.
	if act, ok := k.stepAside(view, u, carrier); ok {
		return act, true
	}

	// Мало охраны у носильщика - подтягиваемся к нему.
	if countEscorts(view, carrier) < 2 {
		if u.Pos.DistanceTo(carrier.Pos) > 2 {
			if act, ok := stepToward(view, u, carrier.Pos); ok {
				return act, true
			}
		}
		return domain.ActionHold, false
	}

	// Охраны достаточно - расчищаем дорогу от видимых врагов.
	return domain.ActionHold, false
}

// stepAside освобождает клетку, если носильщик уперся в этого юнита
// по дороге к эвакуации.
func (k *KnightAI) stepAside(view *engine.TurnView, u *domain.Unit, carrier *domain.Unit) (domain.ActionType, bool) {
	if !u.Pos.IsAdjacent(carrier.Pos) {
		return domain.ActionHold, false
	}
	exit, ok := nearestExtraction(view, carrier.Pos)
	if !ok {
		return domain.ActionHold, false
	}
	dir, ok := carrier.Pos.DirectionTo(exit)
	if !ok || carrier.Pos.Step(dir) != u.Pos {
		return domain.ActionHold, false
	}

	// Пробуем перпендикулярные направления, потом любые свободные.
	for _, off := range []int{2, 6, 1, 7, 3, 5} {
		side := domain.Direction((int(dir) + off) % domain.NumDirections)
		to := u.Pos.Step(side)
		if view.Field.CanMoveTo(to.X, to.Y) {
			return domain.MoveAction(side), true
		}
	}
	return domain.ActionHold, false
}

// countEscorts считает живых рыцарей в двух клетках от носильщика.
func countEscorts(view *engine.TurnView, carrier *domain.Unit) int {
	n := 0
	for _, ally := range view.Field.FactionUnits(carrier.Faction) {
		if ally.ID == carrier.ID || !ally.Alive {
			continue
		}
		if carrier.Pos.DistanceTo(ally.Pos) <= 2 {
			n++
		}
	}
	return n
}

var _ engine.Decider = (*KnightAI)(nil)
