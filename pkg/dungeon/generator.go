package dungeon

import (
	"fmt"
	"math/rand"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
)

// aspectGuard не даёт BSP-дереву плодить вытянутые кишки: узел с
// соотношением сторон выше порога режется поперёк длинной стороны.
const aspectGuard = 1.25

// Rect - прямоугольная область карты (комната или узел BSP-дерева).
type Rect struct {
	X, Y, W, H int
}

func (r Rect) x2() int { return r.X + r.W }
func (r Rect) y2() int { return r.Y + r.H }

// Center возвращает центральную клетку прямоугольника.
func (r Rect) Center() domain.Position {
	return domain.Position{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Contains проверяет, лежит ли клетка внутри прямоугольника.
func (r Rect) Contains(p domain.Position) bool {
	return p.X >= r.X && p.X < r.x2() && p.Y >= r.Y && p.Y < r.y2()
}

// Intersects проверяет пересечение двух прямоугольников.
func (r Rect) Intersects(other Rect) bool {
	return r.X < other.x2() && r.x2() > other.X &&
		r.Y < other.y2() && r.y2() > other.Y
}

// Params - параметры генерации. Заполняются из конфигурации боя.
type Params struct {
	Width, Height int
	// Arena: один открытый зал вместо подземелья.
	Arena           bool
	DifficultChance float64
	MaxDepth        int
	MinRoomSize     int
	MaxRoomSize     int
	// GrailMode добавляет артефакт в дальнюю комнату и зону
	// эвакуации у входа рыцарей.
	GrailMode bool
}

// Layout - результат генерации: готовая сетка плюс разметка,
// нужная для расстановки юнитов и целей боя.
type Layout struct {
	Grid  *domain.Grid
	Rooms []Rect
	// Grail - клетка артефакта (nil вне режима грааля).
	Grail *domain.Position
	// Entrances - клетки входа и эвакуации рыцарей (пусты вне режима грааля).
	Entrances []domain.Position
}

type bspNode struct {
	rect  Rect
	left  *bspNode
	right *bspNode
	room  *Rect
}

// split делит узел надвое. Возвращает false, если узел уже делён
// или слишком мал.
func (n *bspNode) split(rng *rand.Rand, minSize int) bool {
	if n.left != nil || n.right != nil {
		return false
	}

	horizontal := rng.Float64() > 0.5
	// Вытянутый узел режем поперёк длинной стороны
	if n.rect.W > n.rect.H && float64(n.rect.W)/float64(n.rect.H) >= aspectGuard {
		horizontal = false
	} else if n.rect.H > n.rect.W && float64(n.rect.H)/float64(n.rect.W) >= aspectGuard {
		horizontal = true
	}

	limit := n.rect.W
	if horizontal {
		limit = n.rect.H
	}
	maxSplit := limit - minSize
	if maxSplit <= minSize {
		return false
	}

	at := minSize + rng.Intn(maxSplit-minSize+1)
	if horizontal {
		n.left = &bspNode{rect: Rect{n.rect.X, n.rect.Y, n.rect.W, at}}
		n.right = &bspNode{rect: Rect{n.rect.X, n.rect.Y + at, n.rect.W, n.rect.H - at}}
	} else {
		n.left = &bspNode{rect: Rect{n.rect.X, n.rect.Y, at, n.rect.H}}
		n.right = &bspNode{rect: Rect{n.rect.X + at, n.rect.Y, n.rect.W - at, n.rect.H}}
	}
	return true
}

// Generate строит поле боя. Вся случайность идёт через переданный rng,
// поэтому одинаковое зерно даёт одинаковую карту байт в байт.
func Generate(p Params, rng *rand.Rand) (*Layout, error) {
	if p.Width < 12 || p.Height < 12 {
		return nil, fmt.Errorf("map %dx%d is too small to generate", p.Width, p.Height)
	}

	if p.Arena {
		return generateArena(p), nil
	}

	g := domain.NewGrid(p.Width, p.Height)

	// Корень дерева отступает на клетку от края: внешняя стена
	// остаётся нетронутой.
	root := &bspNode{rect: Rect{1, 1, p.Width - 2, p.Height - 2}}
	splitNode(root, rng, p.MaxDepth, p.MinRoomSize)

	var rooms []Rect
	carveRooms(g, root, rng, p.MinRoomSize, p.MaxRoomSize, &rooms)
	if len(rooms) < 2 {
		return nil, fmt.Errorf("generation produced %d rooms, need at least 2", len(rooms))
	}
	connectRooms(g, root, rng)
	scatterDifficult(g, rng, p.DifficultChance)

	layout := &Layout{Grid: g, Rooms: rooms}
	if p.GrailMode {
		placeGrail(layout)
	}
	return layout, nil
}

func splitNode(n *bspNode, rng *rand.Rand, depth, minSize int) {
	if depth <= 0 {
		return
	}
	if n.split(rng, minSize) {
		splitNode(n.left, rng, depth-1, minSize)
		splitNode(n.right, rng, depth-1, minSize)
	}
}

// carveRooms вырезает по комнате в каждом листе дерева. Лист, куда
// комната минимального размера не помещается, остаётся цельной скалой.
func carveRooms(g *domain.Grid, n *bspNode, rng *rand.Rand, minSize, maxSize int, rooms *[]Rect) {
	if n.left != nil || n.right != nil {
		if n.left != nil {
			carveRooms(g, n.left, rng, minSize, maxSize, rooms)
		}
		if n.right != nil {
			carveRooms(g, n.right, rng, minSize, maxSize, rooms)
		}
		return
	}

	maxW := min(maxSize, n.rect.W-2)
	maxH := min(maxSize, n.rect.H-2)
	if maxW < minSize || maxH < minSize {
		return
	}

	w := minSize + rng.Intn(maxW-minSize+1)
	h := minSize + rng.Intn(maxH-minSize+1)
	x := n.rect.X + 1 + rng.Intn(max(1, n.rect.W-w-1))
	y := n.rect.Y + 1 + rng.Intn(max(1, n.rect.H-h-1))

	room := Rect{x, y, w, h}
	n.room = &room
	*rooms = append(*rooms, room)
	carveRect(g, room)
}

func carveRect(g *domain.Grid, r Rect) {
	for y := r.Y; y < r.y2(); y++ {
		for x := r.X; x < r.x2(); x++ {
			if g.InBounds(x, y) {
				g.SetTile(x, y, domain.TileFloor)
			}
		}
	}
}

// connectRooms соединяет поддеревья Г-образными коридорами. Сначала
// связывается каждое поддерево внутри себя, затем между ними
// прокладывается мост из реальной комнаты в реальную комнату: оба конца
// коридора лежат на уже вырезанном полу, поэтому карта связна по
// построению.
func connectRooms(g *domain.Grid, n *bspNode, rng *rand.Rand) {
	if n.left == nil || n.right == nil {
		return
	}
	connectRooms(g, n.left, rng)
	connectRooms(g, n.right, rng)

	a, aok := roomCenter(n.left, rng)
	b, bok := roomCenter(n.right, rng)
	if aok && bok {
		carveCorridor(g, a, b, rng)
	}
}

// roomCenter возвращает центр какой-нибудь комнаты поддерева. Узел без
// единой вырезанной комнаты отдает false: тянуть коридор в цельную
// скалу незачем.
func roomCenter(n *bspNode, rng *rand.Rand) (domain.Position, bool) {
	if n == nil {
		return domain.Position{}, false
	}
	if n.room != nil {
		return n.room.Center(), true
	}
	first, second := n.left, n.right
	if rng.Float64() < 0.5 {
		first, second = second, first
	}
	if c, ok := roomCenter(first, rng); ok {
		return c, true
	}
	return roomCenter(second, rng)
}

func carveCorridor(g *domain.Grid, a, b domain.Position, rng *rand.Rand) {
	if rng.Float64() < 0.5 {
		carveH(g, a.X, b.X, a.Y)
		carveV(g, a.Y, b.Y, b.X)
	} else {
		carveV(g, a.Y, b.Y, a.X)
		carveH(g, a.X, b.X, b.Y)
	}
}

func carveH(g *domain.Grid, x1, x2, y int) {
	for x := min(x1, x2); x <= max(x1, x2); x++ {
		if g.InBounds(x, y) {
			g.SetTile(x, y, domain.TileFloor)
		}
	}
}

func carveV(g *domain.Grid, y1, y2, x int) {
	for y := min(y1, y2); y <= max(y1, y2); y++ {
		if g.InBounds(x, y) {
			g.SetTile(x, y, domain.TileFloor)
		}
	}
}

// scatterDifficult засыпает часть пола завалами: проходимо, но шаг
// стоит вдвое дороже.
func scatterDifficult(g *domain.Grid, rng *rand.Rand, chance float64) {
	if chance <= 0 {
		return
	}
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if g.At(x, y).Kind == domain.TileFloor && rng.Float64() < chance {
				g.SetTile(x, y, domain.TileDifficult)
			}
		}
	}
}
