package dungeon

import (
	"github.com/mikkokallio/goblin-tactics/internal/domain"
)

// generateArena строит один открытый зал во всю карту: пол внутри,
// стена по периметру, без завалов. Такая площадка используется первой
// фазой учебной программы - гоблины осваивают бой до того, как
// столкнутся с коридорами и туманом подземелья.
func generateArena(p Params) *Layout {
	g := domain.NewGrid(p.Width, p.Height)

	hall := Rect{1, 1, p.Width - 2, p.Height - 2}
	carveRect(g, hall)

	return &Layout{
		Grid: g,
		// Весь зал считается одной комнатой: выборка стартовых
		// позиций работает с ним так же, как с комнатами подземелья.
		Rooms: []Rect{hall},
	}
}
