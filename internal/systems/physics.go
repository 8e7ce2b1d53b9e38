package systems

import (
	"github.com/mikkokallio/goblin-tactics/internal/domain"
)

// HasLineOfSight проверяет прямую видимость между двумя точками.
// Использует оптимизированный алгоритм Брезенхэма (только целочисленная
// арифметика). Проверяются промежуточные клетки, сами конечные точки
// препятствием не считаются. Функция чистая и симметричная: результат
// зависит только от статичной карты и пары клеток, не от порядка
// аргументов.
func HasLineOfSight(g *domain.Grid, p1, p2 domain.Position) bool {
	if p1.X == p2.X && p1.Y == p2.Y {
		return true
	}

	// Луч всегда трассируется из канонического конца: обход Брезенхэма
	// в обратную сторону задевает другие клетки, а видимость обязана
	// быть взаимной.
	if p2.Y < p1.Y || (p2.Y == p1.Y && p2.X < p1.X) {
		p1, p2 = p2, p1
	}

	x0, y0 := p1.X, p1.Y
	x1, y1 := p2.X, p2.Y

	dx := x1 - x0
	if dx < 0 {
		dx = -dx
	}
	dy := y1 - y0
	if dy < 0 {
		dy = -dy
	}

	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	err := dx - dy

	for {
		// Проверяем препятствия, ИСКЛЮЧАЯ стартовую и конечную точки.
		isStartPoint := x0 == p1.X && y0 == p1.Y
		isEndPoint := x0 == x1 && y0 == y1

		if !isStartPoint && !isEndPoint {
			// Выход за границы и стены перекрывают луч
			if !g.InBounds(x0, y0) || g.BlocksSight(x0, y0) {
				return false
			}
		}

		if x0 == x1 && y0 == y1 {
			break
		}

		e2 := err * 2
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}

	return true
}
