package engine

import (
	"testing"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
)

func speedyUnit(id, speed int, alive bool) *domain.Unit {
	u := domain.NewUnit(id, domain.FactionGoblins, domain.Position{X: id, Y: 0}, 10, 1, 2, speed, 3)
	u.Alive = alive
	return u
}

func TestInitiativeOrder_FasterFirst(t *testing.T) {
	units := []*domain.Unit{
		speedyUnit(0, 4, true),
		speedyUnit(1, 5, true),
		speedyUnit(2, 4, true),
		speedyUnit(3, 5, true),
	}

	order := InitiativeOrder(units)

	want := []int{1, 3, 0, 2} // скорость 5 раньше 4, внутри скорости - по ID
	if len(order) != len(want) {
		t.Fatalf("order length = %d, want %d", len(order), len(want))
	}
	for i, id := range want {
		if order[i].ID != id {
			t.Errorf("order[%d] = unit %d, want %d", i, order[i].ID, id)
		}
	}
}

func TestInitiativeOrder_SkipsDead(t *testing.T) {
	units := []*domain.Unit{
		speedyUnit(0, 5, false),
		speedyUnit(1, 4, true),
	}

	order := InitiativeOrder(units)

	if len(order) != 1 || order[0].ID != 1 {
		t.Fatalf("order = %v, want only unit 1", ids(order))
	}
}

func TestInitiativeOrder_Empty(t *testing.T) {
	if got := InitiativeOrder(nil); len(got) != 0 {
		t.Fatalf("InitiativeOrder(nil) returned %d units", len(got))
	}
}

func ids(units []*domain.Unit) []int {
	out := make([]int, len(units))
	for i, u := range units {
		out[i] = u.ID
	}
	return out
}
