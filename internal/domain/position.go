package domain

import "math"

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DistanceTo возвращает точное евклидово расстояние до другой точки (float)
func (p Position) DistanceTo(other Position) float64 {
	dx := float64(p.X - other.X)
	dy := float64(p.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// DistanceSquaredTo возвращает квадрат расстояния (int) для сравнения без корней
func (p Position) DistanceSquaredTo(other Position) int {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return dx*dx + dy*dy
}

// Chebyshev возвращает расстояние Чебышева: число ходов при
// 8-направленном движении со стоимостью диагонали 1.
func (p Position) Chebyshev(other Position) int {
	dx := abs(p.X - other.X)
	dy := abs(p.Y - other.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Manhattan возвращает манхэттенское расстояние (|dx| + |dy|).
func (p Position) Manhattan(other Position) int {
	return abs(p.X-other.X) + abs(p.Y-other.Y)
}

// IsAdjacent возвращает true, если цель в соседней клетке (включая диагональ)
func (p Position) IsAdjacent(other Position) bool {
	dx := abs(p.X - other.X)
	dy := abs(p.Y - other.Y)
	return dx <= 1 && dy <= 1 && (dx != 0 || dy != 0)
}

// Shift возвращает новую позицию со смещением (не меняя текущую,
// т.к. Go передает структуры по значению)
func (p Position) Shift(dx, dy int) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Step возвращает соседнюю позицию в указанном направлении.
func (p Position) Step(d Direction) Position {
	dx, dy := d.Delta()
	return p.Shift(dx, dy)
}

// DirectionTo возвращает направление от p к цели по знакам смещения.
// Для совпадающих точек второе значение false.
func (p Position) DirectionTo(other Position) (Direction, bool) {
	return DirectionFromDelta(other.X-p.X, other.Y-p.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
