package ai

import (
	"math/rand"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
	"github.com/mikkokallio/goblin-tactics/internal/engine"
)

// GoblinAI - скриптовая базовая линия для гоблинов. Тот же костяк,
// что у рыцарей, но без граального маршрута: гоблины не уносят грааль,
// а стерегут его. Память у гоблинов длиннее - это их территория.
type GoblinAI struct {
	rng *rand.Rand
}

func NewGoblinAI(rng *rand.Rand) *GoblinAI {
	return &GoblinAI{rng: rng}
}

func (gb *GoblinAI) Decide(view *engine.TurnView, u *domain.Unit) (domain.ActionType, error) {
	// 1. Сначала - выбраться из шторма.
	if act, ok := stormEscape(view, u); ok {
		return act, nil
	}

	// 2. Сосед-враг - атака.
	if len(view.Field.AdjacentEnemies(u)) > 0 {
		return domain.ActionAttack, nil
	}

	// 3. Носильщик грааля - приоритетная цель, даже дальняя.
	if view.Pressure.GrailActive && view.Pressure.GrailCarrier >= 0 {
		if view.Network.Enemies[view.Pressure.GrailCarrier] {
			if carrier := view.Field.Unit(view.Pressure.GrailCarrier); carrier != nil && carrier.Alive {
				if act, ok := stepToward(view, u, carrier.Pos); ok {
					return act, nil
				}
			}
		}
	}

	// 4. Ближайший известный враг.
	if enemy := nearestKnownEnemy(view, u); enemy != nil {
		if act, ok := stepToward(view, u, enemy.Pos); ok {
			return act, nil
		}
	}

	// 5. Остывающий след в памяти.
	if pos, ok := rememberedTarget(view, u, 15); ok {
		if act, ok := stepToward(view, u, pos); ok {
			return act, nil
		}
	}

	// 6. В режиме грааля врагов не видно - стягиваемся к реликвии.
	if view.Pressure.GrailActive && view.Pressure.GrailCarrier < 0 {
		if act, ok := gb.guardGrail(view, u); ok {
			return act, nil
		}
	}

	// 7. Разведка.
	if act, ok := exploreStep(view, u); ok {
		return act, nil
	}

	// 8. Случайный шаг, чтобы стая не застывала.
	if act, ok := driftStep(view, u, gb.rng); ok {
		return act, nil
	}

	return domain.ActionHold, nil
}

// guardGrail подтягивает гоблина к известной клетке грааля. Знание
// честное: клетка должна побывать в зрении или памяти юнита.
func (gb *GoblinAI) guardGrail(view *engine.TurnView, u *domain.Unit) (domain.ActionType, bool) {
	g := view.Field.Grid
	idx := g.Index(view.Pressure.GrailPos.X, view.Pressure.GrailPos.Y)
	if !view.Network.Tiles[idx] && (u.Memory == nil || !u.Memory.Knows(idx)) {
		return domain.ActionHold, false
	}
	if u.Pos.DistanceTo(view.Pressure.GrailPos) <= 3 {
		return domain.ActionHold, false // уже на посту
	}
	return stepToward(view, u, view.Pressure.GrailPos)
}

var _ engine.Decider = (*GoblinAI)(nil)
