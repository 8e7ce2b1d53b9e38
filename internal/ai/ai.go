// Package ai содержит скриптовые политики обеих фракций. Рыцари -
// боевой эталон, против которого обучаются гоблины; гоблинский скрипт -
// базовая линия для сравнения с обученной сетью.
package ai

import (
	"math/rand"
	"sort"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
	"github.com/mikkokallio/goblin-tactics/internal/engine"
	"github.com/mikkokallio/goblin-tactics/internal/systems"
)

// stepToward возвращает ход в сторону цели по известной юниту карте.
// false, если пути нет или юнит уже на месте.
func stepToward(view *engine.TurnView, u *domain.Unit, goal domain.Position) (domain.ActionType, bool) {
	known := systems.KnownTiles(u, view.Snapshot)
	step, ok := systems.NextStep(view.Field, u, known, goal)
	if !ok {
		return domain.ActionHold, false
	}
	dir, ok := u.Pos.DirectionTo(step)
	if !ok {
		return domain.ActionHold, false
	}
	return domain.MoveAction(dir), true
}

// nearestKnownEnemy выбирает ближайшего врага из сети знаний
// (при равных дистанциях - меньший ID).
func nearestKnownEnemy(view *engine.TurnView, u *domain.Unit) *domain.Unit {
	var best *domain.Unit
	bestDist := 0.0
	for _, id := range sortedIDs(view.Network.Enemies) {
		e := view.Field.Unit(id)
		if e == nil || !e.Alive {
			continue
		}
		d := u.Pos.DistanceTo(e.Pos)
		if best == nil || d < bestDist {
			best, bestDist = e, d
		}
	}
	return best
}

// rememberedTarget достает из памяти позицию врага, виденного не
// позже maxStale ходов назад. Выбирается самая свежая запись,
// при равной свежести - меньший ID.
func rememberedTarget(view *engine.TurnView, u *domain.Unit, maxStale int) (domain.Position, bool) {
	if u.Memory == nil {
		return domain.Position{}, false
	}

	bestStale := maxStale
	var bestPos domain.Position
	found := false

	ids := make([]int, 0, len(u.Memory.Enemies))
	for id := range u.Memory.Enemies {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		// Врага, которого видно прямо сейчас, из памяти не берем -
		// его ведет обычное преследование.
		if view.Network.Enemies[id] {
			continue
		}
		if e := view.Field.Unit(id); e == nil || !e.Alive {
			continue
		}
		stale, ok := u.Memory.Staleness(id, view.Turn)
		if !ok || stale >= maxStale {
			continue
		}
		if stale < bestStale || !found {
			bestStale = stale
			bestPos = u.Memory.Enemies[id].Pos
			found = true
		}
	}
	return bestPos, found
}

// exploreStep ведет юнита к ближайшему фронтиру неразведанной территории.
func exploreStep(view *engine.TurnView, u *domain.Unit) (domain.ActionType, bool) {
	known := systems.KnownTiles(u, view.Snapshot)
	path := systems.FrontierPath(view.Field, u, known)
	if len(path) < 2 {
		return domain.ActionHold, false
	}
	dir, ok := u.Pos.DirectionTo(path[1])
	if !ok {
		return domain.ActionHold, false
	}
	return domain.MoveAction(dir), true
}

// driftStep - случайный шаг в проходимую свободную клетку.
func driftStep(view *engine.TurnView, u *domain.Unit, rng *rand.Rand) (domain.ActionType, bool) {
	start := domain.Direction(rng.Intn(domain.NumDirections))
	for i := 0; i < domain.NumDirections; i++ {
		dir := domain.Direction((int(start) + i) % domain.NumDirections)
		to := u.Pos.Step(dir)
		if view.Field.CanMoveTo(to.X, to.Y) {
			return domain.MoveAction(dir), true
		}
	}
	return domain.ActionHold, false
}

// stormEscape уводит юнита к центру безопасной зоны, когда шторм
// уже кусается, а юнит стоит за ее границей.
func stormEscape(view *engine.TurnView, u *domain.Unit) (domain.ActionType, bool) {
	if !view.Pressure.StormShrinking || view.Pressure.InSafeZone(u.Pos) {
		return domain.ActionHold, false
	}
	if act, ok := stepToward(view, u, view.Pressure.SafeCenter); ok {
		return act, true
	}
	// Память может не знать дороги к центру: тогда хотя бы напрямую.
	if dir, ok := u.Pos.DirectionTo(view.Pressure.SafeCenter); ok {
		return domain.MoveAction(dir), true
	}
	return domain.ActionHold, false
}

// marchToward - шаг к цели по известной карте, а если путь через
// память не строится (цель за туманом) - прямой шаг по азимуту,
// лишь бы клетка была свободна. Поведение скриптовых рыцарей:
// миссия им известна, даже когда ландшафт - нет.
func marchToward(view *engine.TurnView, u *domain.Unit, goal domain.Position) (domain.ActionType, bool) {
	if act, ok := stepToward(view, u, goal); ok {
		return act, true
	}
	if dir, ok := u.Pos.DirectionTo(goal); ok {
		if to := u.Pos.Step(dir); view.Field.CanMoveTo(to.X, to.Y) {
			return domain.MoveAction(dir), true
		}
	}
	return domain.ActionHold, false
}

// nearestExtraction возвращает ближайшую к позиции клетку эвакуации.
func nearestExtraction(view *engine.TurnView, from domain.Position) (domain.Position, bool) {
	cells := view.Field.Grid.ExtractionCells
	if len(cells) == 0 {
		return domain.Position{}, false
	}
	best := cells[0]
	bestDist := from.DistanceTo(best)
	for _, c := range cells[1:] {
		if d := from.DistanceTo(c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, true
}

func sortedIDs(set map[int]bool) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
