package domain

import (
	"math/rand"
	"testing"
)

func newKnight(id, x, y int) *Unit {
	return NewUnit(id, FactionKnights, Position{X: x, Y: y}, 20, 2, 4, 5, 3)
}

func TestTakeDamage(t *testing.T) {
	t.Run("normal hit", func(t *testing.T) {
		u := newKnight(1, 0, 0)
		if got := u.TakeDamage(5); got != 5 {
			t.Errorf("actual damage = %d, want 5", got)
		}
		if u.HP != 15 || !u.Alive {
			t.Errorf("after hit: hp=%d alive=%v, want 15 true", u.HP, u.Alive)
		}
	})

	// Возвращается фактически снятое здоровье, не заявленный урон
	t.Run("overkill is clamped", func(t *testing.T) {
		u := newKnight(1, 0, 0)
		u.TakeDamage(17)
		if got := u.TakeDamage(50); got != 3 {
			t.Errorf("actual damage = %d, want remaining 3", got)
		}
		if u.HP != 0 || u.Alive {
			t.Errorf("after overkill: hp=%d alive=%v, want 0 false", u.HP, u.Alive)
		}
	})

	t.Run("exact kill", func(t *testing.T) {
		u := newKnight(1, 0, 0)
		if got := u.TakeDamage(20); got != 20 {
			t.Errorf("actual damage = %d, want 20", got)
		}
		if u.Alive {
			t.Error("unit at zero HP must be dead")
		}
	})

	t.Run("non-positive damage", func(t *testing.T) {
		u := newKnight(1, 0, 0)
		if got := u.TakeDamage(0); got != 0 {
			t.Errorf("zero damage returned %d", got)
		}
		if got := u.TakeDamage(-4); got != 0 {
			t.Errorf("negative damage returned %d", got)
		}
		if u.HP != 20 {
			t.Errorf("hp changed to %d", u.HP)
		}
	})

	t.Run("dead unit takes nothing", func(t *testing.T) {
		u := newKnight(1, 0, 0)
		u.TakeDamage(999)
		if got := u.TakeDamage(5); got != 0 {
			t.Errorf("corpse took %d damage", got)
		}
	})
}

func TestRollDamage(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	u := newKnight(1, 0, 0) // урон 2..4

	for i := 0; i < 200; i++ {
		d := u.RollDamage(rng)
		if d < u.DamageMin || d > u.DamageMax {
			t.Fatalf("roll %d outside [%d,%d]", d, u.DamageMin, u.DamageMax)
		}
	}

	flat := newKnight(2, 0, 0)
	flat.DamageMin, flat.DamageMax = 3, 3
	if d := flat.RollDamage(rng); d != 3 {
		t.Errorf("flat damage roll = %d, want 3", d)
	}
}

func TestHealthFraction(t *testing.T) {
	u := newKnight(1, 0, 0)
	if f := u.HealthFraction(); f != 1.0 {
		t.Errorf("full health fraction = %v, want 1", f)
	}
	u.TakeDamage(5)
	if f := u.HealthFraction(); f != 0.75 {
		t.Errorf("fraction after 5 damage = %v, want 0.75", f)
	}
	u.TakeDamage(999)
	if f := u.HealthFraction(); f != 0 {
		t.Errorf("dead fraction = %v, want 0", f)
	}

	broken := &Unit{HP: 5, MaxHP: 0}
	if f := broken.HealthFraction(); f != 0 {
		t.Errorf("zero MaxHP fraction = %v, want 0", f)
	}
}

func TestFaceToward(t *testing.T) {
	u := newKnight(1, 2, 2)
	u.Facing = DirSouth

	u.FaceToward(Position{X: 2, Y: 0})
	if u.Facing != DirNorth {
		t.Errorf("facing = %v, want N", u.Facing)
	}
	u.FaceToward(Position{X: 3, Y: 3})
	if u.Facing != DirSouthEast {
		t.Errorf("facing = %v, want SE", u.Facing)
	}

	// Поворот на собственную клетку не меняет взгляд
	u.FaceToward(u.Pos)
	if u.Facing != DirSouthEast {
		t.Errorf("facing changed to %v on self-target", u.Facing)
	}
}

func TestArcFrom(t *testing.T) {
	u := newKnight(1, 2, 2)
	u.Facing = DirNorth

	tests := []struct {
		name     string
		attacker Position
		want     Arc
	}{
		{"dead ahead", Position{X: 2, Y: 1}, ArcFront},
		{"front-right", Position{X: 3, Y: 1}, ArcFront},
		{"front-left", Position{X: 1, Y: 1}, ArcFront},
		{"right flank", Position{X: 3, Y: 2}, ArcSide},
		{"left flank", Position{X: 1, Y: 2}, ArcSide},
		{"rear-right", Position{X: 3, Y: 3}, ArcRear},
		{"dead astern", Position{X: 2, Y: 3}, ArcRear},
		{"rear-left", Position{X: 1, Y: 3}, ArcRear},
		{"same cell", Position{X: 2, Y: 2}, ArcFront},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := u.ArcFrom(tt.attacker); got != tt.want {
				t.Errorf("ArcFrom(%v) = %v, want %v", tt.attacker, got, tt.want)
			}
		})
	}

	// Сектор зависит от взгляда: та же позиция, другой арк
	u.Facing = DirEast
	if got := u.ArcFrom(Position{X: 2, Y: 1}); got != ArcSide {
		t.Errorf("north attacker against east-facing unit = %v, want side", got)
	}
}
