package systems

import (
	"testing"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
)

// openGrid создает карту, целиком залитую полом.
func openGrid(w, h int) *domain.Grid {
	g := domain.NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.SetTile(x, y, domain.TileFloor)
		}
	}
	return g
}

func TestHasLineOfSight(t *testing.T) {
	// Карта 5x5
	// . . . . .
	// . . # . .  (2,1) - стена
	// . # # # .  (1,2), (2,2), (3,2) - стена
	// . . # . .  (2,3) - стена
	// . . . . .

	g := openGrid(5, 5)
	g.SetTile(2, 1, domain.TileWall)
	g.SetTile(1, 2, domain.TileWall)
	g.SetTile(2, 2, domain.TileWall)
	g.SetTile(3, 2, domain.TileWall)
	g.SetTile(2, 3, domain.TileWall)

	tests := []struct {
		name string
		p1   domain.Position
		p2   domain.Position
		want bool
	}{
		{"Clear horizontal", domain.Position{X: 0, Y: 0}, domain.Position{X: 4, Y: 0}, true},
		{"Blocked horizontal", domain.Position{X: 0, Y: 2}, domain.Position{X: 4, Y: 2}, false},
		{"Clear diagonal", domain.Position{X: 0, Y: 0}, domain.Position{X: 1, Y: 1}, true},
		{"Blocked diagonal", domain.Position{X: 0, Y: 0}, domain.Position{X: 4, Y: 4}, false}, // через (2,2)
		{"Adjacent wall", domain.Position{X: 2, Y: 1}, domain.Position{X: 2, Y: 2}, true},     // Конечная точка не преграда
		{"Behind wall", domain.Position{X: 2, Y: 1}, domain.Position{X: 2, Y: 3}, false},      // Стена (2,2) мешает
		{"Same cell", domain.Position{X: 1, Y: 1}, domain.Position{X: 1, Y: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasLineOfSight(g, tt.p1, tt.p2); got != tt.want {
				t.Errorf("HasLineOfSight(%v, %v) = %v, want %v", tt.p1, tt.p2, got, tt.want)
			}
		})
	}
}

// Луч должен давать одинаковый ответ в обе стороны: взаимная видимость -
// предусловие ребра сети знаний.
func TestHasLineOfSight_Symmetric(t *testing.T) {
	g := openGrid(8, 8)
	g.SetTile(3, 3, domain.TileWall)
	g.SetTile(4, 3, domain.TileWall)
	g.SetTile(5, 5, domain.TileWall)

	for y1 := 0; y1 < 8; y1++ {
		for x1 := 0; x1 < 8; x1++ {
			for y2 := 0; y2 < 8; y2++ {
				for x2 := 0; x2 < 8; x2++ {
					a := domain.Position{X: x1, Y: y1}
					b := domain.Position{X: x2, Y: y2}
					if HasLineOfSight(g, a, b) != HasLineOfSight(g, b, a) {
						t.Fatalf("asymmetric LoS between %v and %v", a, b)
					}
				}
			}
		}
	}
}

// Сложный ландшафт прозрачен: стоимость движения не влияет на обзор.
func TestHasLineOfSight_DifficultTransparent(t *testing.T) {
	g := openGrid(5, 1)
	g.SetTile(2, 0, domain.TileDifficult)

	if !HasLineOfSight(g, domain.Position{X: 0, Y: 0}, domain.Position{X: 4, Y: 0}) {
		t.Error("difficult terrain must not block sight")
	}
}
