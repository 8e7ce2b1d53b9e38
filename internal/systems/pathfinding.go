package systems

import (
	"container/heap"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
)

// Штрафы за проход через занятые клетки. Мягкие: маршрут через союзника
// возможен (встать в очередь за ним), но открытый обход всегда дешевле.
const (
	allyOccupiedPenalty  = 10
	enemyOccupiedPenalty = 20
)

// pathNode - узел открытого списка A*.
type pathNode struct {
	idx   int     // индекс клетки
	g     int     // накопленная стоимость от старта
	f     int     // g + эвристика
	dist  float64 // евклидово расстояние до цели (разрешение ничьих)
	index int     // позиция в куче
}

// openList реализует heap.Interface. Порядок сравнения фиксирован:
// меньший f, затем меньшее расстояние до цели, затем меньший индекс
// клетки - иначе результат зависел бы от порядка вставки.
type openList []*pathNode

func (ol openList) Len() int { return len(ol) }

func (ol openList) Less(i, j int) bool {
	if ol[i].f != ol[j].f {
		return ol[i].f < ol[j].f
	}
	if ol[i].dist != ol[j].dist {
		return ol[i].dist < ol[j].dist
	}
	return ol[i].idx < ol[j].idx
}

func (ol openList) Swap(i, j int) {
	ol[i], ol[j] = ol[j], ol[i]
	ol[i].index = i
	ol[j].index = j
}

func (ol *openList) Push(x interface{}) {
	n := x.(*pathNode)
	n.index = len(*ol)
	*ol = append(*ol, n)
}

func (ol *openList) Pop() interface{} {
	old := *ol
	n := old[len(old)-1]
	old[len(old)-1] = nil // избегаем утечки памяти
	*ol = old[:len(old)-1]
	return n
}

// stepCost возвращает стоимость входа юнита в клетку: стоимость
// ландшафта плюс штраф за занятость. Целевая клетка штрафа не получает,
// чтобы занятая врагом цель оставалась достижимой.
func stepCost(bf *domain.Battlefield, u *domain.Unit, idx, goalIdx int) int {
	x, y := bf.Grid.Coords(idx)
	cost := bf.Grid.MoveCost(x, y)
	if idx == goalIdx {
		return cost
	}
	if other := bf.UnitAt(x, y); other != nil && other.ID != u.ID {
		if other.Faction == u.Faction {
			cost += allyOccupiedPenalty
		} else {
			cost += enemyOccupiedPenalty
		}
	}
	return cost
}

// FindPath ищет маршрут юнита к цели алгоритмом A*. Область поиска
// ограничена известными юниту клетками (память плюс текущий обзор):
// совершенно незнакомый ландшафт непроходим для планирования, даже если
// фактически там пол. Эвристика - расстояние Чебышева (допустимая:
// диагональный шаг стоит столько же, сколько прямой).
//
// Возвращает полный маршрут от стартовой клетки до цели включительно,
// либо nil, если цель неизвестна, непроходима или недостижима. Отсутствие
// пути - штатная ситуация, не ошибка: вызывающий обязан перейти к
// запасному поведению (разведка фронтира).
func FindPath(bf *domain.Battlefield, u *domain.Unit, known map[int]bool, goal domain.Position) []domain.Position {
	g := bf.Grid
	if !g.InBounds(goal.X, goal.Y) || !g.Passable(goal.X, goal.Y) {
		return nil
	}

	startIdx := g.Index(u.Pos.X, u.Pos.Y)
	goalIdx := g.Index(goal.X, goal.Y)
	if !known[goalIdx] {
		return nil
	}
	if startIdx == goalIdx {
		return []domain.Position{u.Pos}
	}

	start := &pathNode{
		idx:  startIdx,
		g:    0,
		f:    u.Pos.Chebyshev(goal),
		dist: u.Pos.DistanceTo(goal),
	}

	open := &openList{start}
	heap.Init(open)

	cameFrom := make(map[int]int)
	bestG := map[int]int{startIdx: 0}
	closed := make(map[int]bool)

	for open.Len() > 0 {
		cur := heap.Pop(open).(*pathNode)
		if cur.idx == goalIdx {
			return reconstructPath(g, cameFrom, startIdx, goalIdx)
		}
		if closed[cur.idx] {
			continue
		}
		closed[cur.idx] = true

		cx, cy := g.Coords(cur.idx)
		pos := domain.Position{X: cx, Y: cy}

		// Обход соседей в фиксированном порядке розы направлений
		for d := domain.Direction(0); d < domain.NumDirections; d++ {
			next := pos.Step(d)
			if !g.InBounds(next.X, next.Y) || !g.Passable(next.X, next.Y) {
				continue
			}
			nextIdx := g.Index(next.X, next.Y)
			if !known[nextIdx] || closed[nextIdx] {
				continue
			}

			tentative := cur.g + stepCost(bf, u, nextIdx, goalIdx)
			if prev, ok := bestG[nextIdx]; ok && tentative >= prev {
				continue
			}
			bestG[nextIdx] = tentative
			cameFrom[nextIdx] = cur.idx

			heap.Push(open, &pathNode{
				idx:  nextIdx,
				g:    tentative,
				f:    tentative + next.Chebyshev(goal),
				dist: next.DistanceTo(goal),
			})
		}
	}

	return nil
}

// reconstructPath разворачивает цепочку cameFrom в маршрут от старта к цели.
func reconstructPath(g *domain.Grid, cameFrom map[int]int, startIdx, goalIdx int) []domain.Position {
	var cells []int
	for idx := goalIdx; ; {
		cells = append(cells, idx)
		if idx == startIdx {
			break
		}
		idx = cameFrom[idx]
	}

	path := make([]domain.Position, len(cells))
	for i, idx := range cells {
		x, y := g.Coords(idx)
		path[len(cells)-1-i] = domain.Position{X: x, Y: y}
	}
	return path
}

// NextStep возвращает первую клетку маршрута к цели (после стартовой).
// Второе значение false, если пути нет или юнит уже на месте.
func NextStep(bf *domain.Battlefield, u *domain.Unit, known map[int]bool, goal domain.Position) (domain.Position, bool) {
	path := FindPath(bf, u, known, goal)
	if len(path) < 2 {
		return domain.Position{}, false
	}
	return path[1], true
}

// isFrontier проверяет, граничит ли известная клетка с неизвестной
// (в пределах карты). Такие клетки - цели разведки. Стены не в счет:
// блокирующая обзор клетка в память не попадает никогда, и сосед-стена
// превращал бы каждую клетку у стены в вечный фронтир.
func isFrontier(g *domain.Grid, known map[int]bool, idx int) bool {
	x, y := g.Coords(idx)
	pos := domain.Position{X: x, Y: y}
	for d := domain.Direction(0); d < domain.NumDirections; d++ {
		n := pos.Step(d)
		if !g.InBounds(n.X, n.Y) {
			continue
		}
		if !g.Passable(n.X, n.Y) && g.BlocksSight(n.X, n.Y) {
			continue
		}
		if !known[g.Index(n.X, n.Y)] {
			return true
		}
	}
	return false
}

// FrontierPath ищет маршрут к ближайшей клетке фронтира - известной
// проходимой клетке, граничащей с неразведанной территорией. Поиск идет
// той же стоимостной моделью, что и FindPath, поэтому достижимость
// гарантирована по построению. При полностью разведанной (или полностью
// отрезанной) карте возвращает nil.
func FrontierPath(bf *domain.Battlefield, u *domain.Unit, known map[int]bool) []domain.Position {
	g := bf.Grid
	startIdx := g.Index(u.Pos.X, u.Pos.Y)

	// Дейкстра по известным клеткам; цель не фиксирована, поэтому
	// эвристики нет (f == g), а ничьи решает индекс клетки.
	start := &pathNode{idx: startIdx}
	open := &openList{start}
	heap.Init(open)

	cameFrom := make(map[int]int)
	bestG := map[int]int{startIdx: 0}
	closed := make(map[int]bool)

	for open.Len() > 0 {
		cur := heap.Pop(open).(*pathNode)
		if closed[cur.idx] {
			continue
		}
		closed[cur.idx] = true

		// Первый извлеченный фронтир - ближайший по стоимости
		if cur.idx != startIdx && isFrontier(g, known, cur.idx) {
			return reconstructPath(g, cameFrom, startIdx, cur.idx)
		}

		cx, cy := g.Coords(cur.idx)
		pos := domain.Position{X: cx, Y: cy}

		for d := domain.Direction(0); d < domain.NumDirections; d++ {
			next := pos.Step(d)
			if !g.InBounds(next.X, next.Y) || !g.Passable(next.X, next.Y) {
				continue
			}
			nextIdx := g.Index(next.X, next.Y)
			if !known[nextIdx] || closed[nextIdx] {
				continue
			}

			tentative := cur.g + stepCost(bf, u, nextIdx, -1)
			if prev, ok := bestG[nextIdx]; ok && tentative >= prev {
				continue
			}
			bestG[nextIdx] = tentative
			cameFrom[nextIdx] = cur.idx

			heap.Push(open, &pathNode{idx: nextIdx, g: tentative, f: tentative})
		}
	}

	return nil
}
