package domain

// EnemySighting - последняя известная позиция врага и ход, на котором
// его видели. Запись перезаписывается при каждом новом контакте и
// никогда не удаляется: давность вычисляется, а не хранится.
type EnemySighting struct {
	Pos  Position `json:"pos"`
	Turn int      `json:"turn"`
}

// UnitMemory - персистентная память одного юнита.
//
// Tiles растет монотонно: клетка, однажды попавшая в сеть знаний юнита,
// остается известной до конца боя. Enemies хранит по одной записи на
// врага; устаревшие записи остаются как история для преследования.
type UnitMemory struct {
	Tiles   map[int]bool          `json:"tiles"`
	Enemies map[int]EnemySighting `json:"enemies"`
}

func NewUnitMemory() *UnitMemory {
	return &UnitMemory{
		Tiles:   make(map[int]bool),
		Enemies: make(map[int]EnemySighting),
	}
}

// RememberTiles добавляет клетки в память ландшафта и возвращает число
// впервые увиденных клеток (нужно событию разведки).
func (m *UnitMemory) RememberTiles(tiles map[int]bool) int {
	discovered := 0
	for idx := range tiles {
		if !m.Tiles[idx] {
			m.Tiles[idx] = true
			discovered++
		}
	}
	return discovered
}

// RememberEnemy перезаписывает запись о враге текущим наблюдением.
func (m *UnitMemory) RememberEnemy(id int, pos Position, turn int) {
	m.Enemies[id] = EnemySighting{Pos: pos, Turn: turn}
}

// Knows проверяет, есть ли клетка в памяти ландшафта.
func (m *UnitMemory) Knows(idx int) bool {
	return m.Tiles[idx]
}

// Staleness возвращает давность записи о враге в ходах.
// Второе значение false, если враг ни разу не наблюдался.
func (m *UnitMemory) Staleness(enemyID, currentTurn int) (int, bool) {
	s, ok := m.Enemies[enemyID]
	if !ok {
		return 0, false
	}
	return currentTurn - s.Turn, true
}

// ExploredFraction возвращает долю разведанных клеток от числа
// проходимых клеток карты.
func (m *UnitMemory) ExploredFraction(totalPassable int) float64 {
	if totalPassable <= 0 {
		return 0
	}
	return float64(len(m.Tiles)) / float64(totalPassable)
}
