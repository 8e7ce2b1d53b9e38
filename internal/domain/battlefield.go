package domain

import "fmt"

// Battlefield объединяет карту и юнитов одного боя и поддерживает
// индекс занятости клеток. В клетке может стоять не больше одного
// живого юнита; трупы клетки не занимают.
type Battlefield struct {
	Grid  *Grid
	Units []*Unit

	// Индекс клетки -> живой юнит на ней.
	occupied map[int]*Unit
	byID     map[int]*Unit
}

func NewBattlefield(grid *Grid) *Battlefield {
	return &Battlefield{
		Grid:     grid,
		occupied: make(map[int]*Unit),
		byID:     make(map[int]*Unit),
	}
}

// AddUnit ставит юнита на поле. Ошибка, если клетка непроходима или занята.
func (b *Battlefield) AddUnit(u *Unit) error {
	if !b.Grid.Passable(u.Pos.X, u.Pos.Y) {
		return fmt.Errorf("cell (%d,%d) is not passable", u.Pos.X, u.Pos.Y)
	}
	idx := b.Grid.Index(u.Pos.X, u.Pos.Y)
	if b.occupied[idx] != nil {
		return fmt.Errorf("cell (%d,%d) is already occupied", u.Pos.X, u.Pos.Y)
	}
	b.Units = append(b.Units, u)
	b.occupied[idx] = u
	b.byID[u.ID] = u
	return nil
}

// Unit ищет юнита по ID (включая погибших, пока они не убраны из боя).
func (b *Battlefield) Unit(id int) *Unit {
	return b.byID[id]
}

// UnitAt возвращает живого юнита в клетке, либо nil.
func (b *Battlefield) UnitAt(x, y int) *Unit {
	if !b.Grid.InBounds(x, y) {
		return nil
	}
	return b.occupied[b.Grid.Index(x, y)]
}

// IsOccupied проверяет, занята ли клетка живым юнитом.
func (b *Battlefield) IsOccupied(x, y int) bool {
	return b.UnitAt(x, y) != nil
}

// CanMoveTo проверяет, что клетка проходима и свободна.
func (b *Battlefield) CanMoveTo(x, y int) bool {
	return b.Grid.Passable(x, y) && !b.IsOccupied(x, y)
}

// MoveUnit переносит юнита в новую клетку и обновляет индекс занятости.
// Взгляд юнита поворачивается по направлению шага.
func (b *Battlefield) MoveUnit(u *Unit, to Position) error {
	if !b.CanMoveTo(to.X, to.Y) {
		return fmt.Errorf("cell (%d,%d) is blocked", to.X, to.Y)
	}
	u.FaceToward(to)
	delete(b.occupied, b.Grid.Index(u.Pos.X, u.Pos.Y))
	u.Pos = to
	b.occupied[b.Grid.Index(to.X, to.Y)] = u
	return nil
}

// ReleaseCell убирает юнита из индекса занятости (вызывается при смерти:
// труп не мешает проходу). Из списка юнитов погибший удаляется позже,
// в конце хода.
func (b *Battlefield) ReleaseCell(u *Unit) {
	idx := b.Grid.Index(u.Pos.X, u.Pos.Y)
	if b.occupied[idx] == u {
		delete(b.occupied, idx)
	}
}

// RemoveDead выкидывает погибших из списка юнитов. Возвращает убранных.
func (b *Battlefield) RemoveDead() []*Unit {
	var dead []*Unit
	live := b.Units[:0]
	for _, u := range b.Units {
		if u.Alive {
			live = append(live, u)
			continue
		}
		b.ReleaseCell(u)
		delete(b.byID, u.ID)
		// Память погибшего никому не передается
		u.Memory = nil
		dead = append(dead, u)
	}
	b.Units = live
	return dead
}

// LiveUnits возвращает живых юнитов в порядке добавления.
func (b *Battlefield) LiveUnits() []*Unit {
	out := make([]*Unit, 0, len(b.Units))
	for _, u := range b.Units {
		if u.Alive {
			out = append(out, u)
		}
	}
	return out
}

// FactionUnits возвращает живых юнитов фракции.
func (b *Battlefield) FactionUnits(f Faction) []*Unit {
	out := make([]*Unit, 0, len(b.Units))
	for _, u := range b.Units {
		if u.Alive && u.Faction == f {
			out = append(out, u)
		}
	}
	return out
}

// FactionCount возвращает число живых юнитов фракции.
func (b *Battlefield) FactionCount(f Faction) int {
	n := 0
	for _, u := range b.Units {
		if u.Alive && u.Faction == f {
			n++
		}
	}
	return n
}

// AdjacentUnits возвращает живых юнитов в восьми соседних клетках.
func (b *Battlefield) AdjacentUnits(u *Unit) []*Unit {
	out := make([]*Unit, 0, NumDirections)
	for d := Direction(0); d < NumDirections; d++ {
		n := u.Pos.Step(d)
		if other := b.UnitAt(n.X, n.Y); other != nil && other != u {
			out = append(out, other)
		}
	}
	return out
}

// AdjacentAllies возвращает живых союзников в соседних клетках.
func (b *Battlefield) AdjacentAllies(u *Unit) []*Unit {
	var out []*Unit
	for _, other := range b.AdjacentUnits(u) {
		if other.Faction == u.Faction {
			out = append(out, other)
		}
	}
	return out
}

// AdjacentEnemies возвращает живых врагов в соседних клетках.
func (b *Battlefield) AdjacentEnemies(u *Unit) []*Unit {
	var out []*Unit
	for _, other := range b.AdjacentUnits(u) {
		if other.Faction != u.Faction {
			out = append(out, other)
		}
	}
	return out
}
