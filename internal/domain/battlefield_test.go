package domain

import "testing"

// floorGrid создает карту, целиком залитую полом.
func floorGrid(w, h int) *Grid {
	g := NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.SetTile(x, y, TileFloor)
		}
	}
	return g
}

func addUnit(t *testing.T, bf *Battlefield, u *Unit) {
	t.Helper()
	if err := bf.AddUnit(u); err != nil {
		t.Fatalf("AddUnit(%d): %v", u.ID, err)
	}
}

func TestAddUnit(t *testing.T) {
	g := floorGrid(5, 5)
	g.SetTile(3, 3, TileWall)
	bf := NewBattlefield(g)

	u := newKnight(1, 1, 1)
	addUnit(t, bf, u)

	if got := bf.UnitAt(1, 1); got != u {
		t.Errorf("UnitAt(1,1) = %v, want the added unit", got)
	}
	if bf.Unit(1) != u {
		t.Error("lookup by ID failed")
	}

	if err := bf.AddUnit(newKnight(2, 1, 1)); err == nil {
		t.Error("second unit on an occupied cell must be rejected")
	}
	if err := bf.AddUnit(newKnight(3, 3, 3)); err == nil {
		t.Error("unit on a wall cell must be rejected")
	}
}

func TestMoveUnit(t *testing.T) {
	g := floorGrid(5, 5)
	g.SetTile(3, 1, TileWall)
	bf := NewBattlefield(g)

	u := newKnight(1, 1, 1)
	other := newKnight(2, 1, 3)
	addUnit(t, bf, u)
	addUnit(t, bf, other)

	if err := bf.MoveUnit(u, Position{X: 2, Y: 1}); err != nil {
		t.Fatalf("MoveUnit: %v", err)
	}
	if bf.UnitAt(1, 1) != nil {
		t.Error("old cell still occupied after move")
	}
	if bf.UnitAt(2, 1) != u {
		t.Error("new cell not occupied after move")
	}
	// Взгляд поворачивается по направлению шага
	if u.Facing != DirEast {
		t.Errorf("facing = %v, want E", u.Facing)
	}

	if err := bf.MoveUnit(u, Position{X: 3, Y: 1}); err == nil {
		t.Error("move into a wall must fail")
	}
	if err := bf.MoveUnit(u, other.Pos); err == nil {
		t.Error("move onto an occupied cell must fail")
	}
	if u.Pos != (Position{X: 2, Y: 1}) {
		t.Errorf("failed moves changed position to %v", u.Pos)
	}
}

func TestRemoveDead(t *testing.T) {
	bf := NewBattlefield(floorGrid(5, 5))
	u := newKnight(1, 1, 1)
	victim := NewUnit(2, FactionGoblins, Position{X: 2, Y: 1}, 5, 1, 1, 4, 3)
	addUnit(t, bf, u)
	addUnit(t, bf, victim)
	victim.Memory.RememberTiles(map[int]bool{0: true})

	victim.TakeDamage(999)
	bf.ReleaseCell(victim)

	// Труп не занимает клетку
	if bf.UnitAt(2, 1) != nil {
		t.Error("corpse still occupies its cell")
	}
	if !bf.CanMoveTo(2, 1) {
		t.Error("cell with a corpse must be walkable")
	}

	dead := bf.RemoveDead()
	if len(dead) != 1 || dead[0] != victim {
		t.Fatalf("RemoveDead = %v, want the victim", dead)
	}
	if bf.Unit(victim.ID) != nil {
		t.Error("dead unit still resolvable by ID")
	}
	// Память погибшего уничтожается вместе с ним
	if victim.Memory != nil {
		t.Error("dead unit memory must be discarded")
	}
	if u.Memory == nil {
		t.Error("survivor memory must be kept")
	}

	if n := bf.FactionCount(FactionGoblins); n != 0 {
		t.Errorf("goblins alive = %d, want 0", n)
	}
	if live := bf.LiveUnits(); len(live) != 1 || live[0] != u {
		t.Errorf("LiveUnits = %v, want only the knight", live)
	}
}

func TestAdjacency(t *testing.T) {
	bf := NewBattlefield(floorGrid(7, 7))
	center := newKnight(1, 3, 3)
	ally := newKnight(2, 2, 2)
	enemy := NewUnit(3, FactionGoblins, Position{X: 4, Y: 3}, 5, 1, 1, 4, 3)
	far := NewUnit(4, FactionGoblins, Position{X: 6, Y: 6}, 5, 1, 1, 4, 3)
	addUnit(t, bf, center)
	addUnit(t, bf, ally)
	addUnit(t, bf, enemy)
	addUnit(t, bf, far)

	if got := bf.AdjacentUnits(center); len(got) != 2 {
		t.Errorf("adjacent units = %d, want 2", len(got))
	}
	if got := bf.AdjacentAllies(center); len(got) != 1 || got[0] != ally {
		t.Errorf("adjacent allies = %v, want the ally", got)
	}
	if got := bf.AdjacentEnemies(center); len(got) != 1 || got[0] != enemy {
		t.Errorf("adjacent enemies = %v, want the enemy", got)
	}

	// Смерть немедленно убирает юнита из соседства
	enemy.TakeDamage(999)
	bf.ReleaseCell(enemy)
	if got := bf.AdjacentEnemies(center); len(got) != 0 {
		t.Errorf("dead enemy still adjacent: %v", got)
	}
}

func TestFactionUnits(t *testing.T) {
	bf := NewBattlefield(floorGrid(5, 5))
	k1 := newKnight(1, 1, 1)
	k2 := newKnight(2, 3, 1)
	gob := NewUnit(3, FactionGoblins, Position{X: 1, Y: 3}, 5, 1, 1, 4, 3)
	addUnit(t, bf, k1)
	addUnit(t, bf, k2)
	addUnit(t, bf, gob)

	if got := bf.FactionUnits(FactionKnights); len(got) != 2 {
		t.Errorf("knights = %d, want 2", len(got))
	}
	if got := bf.FactionCount(FactionGoblins); got != 1 {
		t.Errorf("goblin count = %d, want 1", got)
	}

	k2.TakeDamage(999)
	if got := bf.FactionCount(FactionKnights); got != 1 {
		t.Errorf("knight count after death = %d, want 1", got)
	}
}
