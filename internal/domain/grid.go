package domain

// TileKind - тип клетки ландшафта.
type TileKind uint8

const (
	TileFloor TileKind = iota
	TileWall
	TileDifficult
	TileHazard
)

// String реализует интерфейс Stringer
func (k TileKind) String() string {
	switch k {
	case TileFloor:
		return "floor"
	case TileWall:
		return "wall"
	case TileDifficult:
		return "difficult"
	case TileHazard:
		return "hazard"
	}
	return "unknown"
}

// Passable возвращает true, если по клетке можно ходить.
func (k TileKind) Passable() bool {
	return k == TileFloor || k == TileDifficult
}

// MoveCost возвращает стоимость входа в клетку.
// Для непроходимых клеток значение не определено, ноль.
func (k TileKind) MoveCost() int {
	switch k {
	case TileFloor:
		return 1
	case TileDifficult:
		return 2
	}
	return 0
}

// BlocksSight возвращает true, если клетка перекрывает линию обзора.
// Обзор блокируют только стены; опасный ландшафт прозрачен.
func (k TileKind) BlocksSight() bool {
	return k == TileWall
}

type Tile struct {
	Kind TileKind `json:"kind"`
}

// Grid - прямоугольная карта боя. После генерации карта неизменна:
// единственное исключение - разметка цели и зоны эвакуации при
// подготовке боя за артефакт.
type Grid struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Tiles  []Tile `json:"tiles"` // построчно, индекс = Y*Width + X

	// Статика режима артефакта. Заполняется один раз на этапе SETUP.
	ObjectiveCell *Position `json:"objectiveCell,omitempty"`
	// Индексы клеток зоны эвакуации.
	// json:"-" - зону восстанавливают из ExtractionCells
	extraction      map[int]bool
	ExtractionCells []Position `json:"extractionCells,omitempty"`
}

// NewGrid создает карту, полностью залитую стенами (генератор вырезает комнаты).
func NewGrid(width, height int) *Grid {
	tiles := make([]Tile, width*height)
	for i := range tiles {
		tiles[i] = Tile{Kind: TileWall}
	}
	return &Grid{Width: width, Height: height, Tiles: tiles}
}

func (g *Grid) Index(x, y int) int {
	return y*g.Width + x
}

// Coords возвращает координаты клетки по ее индексу.
func (g *Grid) Coords(idx int) (int, int) {
	return idx % g.Width, idx / g.Width
}

func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// At возвращает клетку. Выход за границы считается стеной,
// чтобы лучи обзора и маршруты не требовали отдельных проверок.
func (g *Grid) At(x, y int) Tile {
	if !g.InBounds(x, y) {
		return Tile{Kind: TileWall}
	}
	return g.Tiles[g.Index(x, y)]
}

// SetTile меняет тип клетки. Используется только генератором карт.
func (g *Grid) SetTile(x, y int, kind TileKind) {
	if g.InBounds(x, y) {
		g.Tiles[g.Index(x, y)].Kind = kind
	}
}

func (g *Grid) Passable(x, y int) bool {
	return g.At(x, y).Kind.Passable()
}

func (g *Grid) MoveCost(x, y int) int {
	return g.At(x, y).Kind.MoveCost()
}

func (g *Grid) BlocksSight(x, y int) bool {
	return g.At(x, y).Kind.BlocksSight()
}

// Neighbors возвращает проходимых соседей клетки по восьми направлениям.
// Порядок фиксированный (по часовой стрелке от севера) - важно для
// детерминизма поиска пути.
func (g *Grid) Neighbors(p Position) []Position {
	out := make([]Position, 0, NumDirections)
	for d := Direction(0); d < NumDirections; d++ {
		n := p.Step(d)
		if g.Passable(n.X, n.Y) {
			out = append(out, n)
		}
	}
	return out
}

// PassableCount возвращает число проходимых клеток (для доли разведанного).
func (g *Grid) PassableCount() int {
	count := 0
	for _, t := range g.Tiles {
		if t.Kind.Passable() {
			count++
		}
	}
	return count
}

// Centroid возвращает геометрический центр карты, центр безопасной зоны.
func (g *Grid) Centroid() Position {
	return Position{X: g.Width / 2, Y: g.Height / 2}
}

// SetObjective размечает клетку артефакта. Вызывается один раз на SETUP.
func (g *Grid) SetObjective(p Position) {
	g.ObjectiveCell = &p
}

// SetExtraction размечает зону эвакуации. Вызывается один раз на SETUP.
func (g *Grid) SetExtraction(cells []Position) {
	g.ExtractionCells = cells
	g.extraction = make(map[int]bool, len(cells))
	for _, c := range cells {
		g.extraction[g.Index(c.X, c.Y)] = true
	}
}

// IsExtraction проверяет, входит ли клетка в зону эвакуации.
func (g *Grid) IsExtraction(p Position) bool {
	if g.extraction == nil {
		// После десериализации индекс нужно собрать заново
		if len(g.ExtractionCells) == 0 {
			return false
		}
		g.SetExtraction(g.ExtractionCells)
	}
	return g.extraction[g.Index(p.X, p.Y)]
}
