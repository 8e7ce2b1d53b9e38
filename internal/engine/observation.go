package engine

import (
	"math"
	"sort"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
	"github.com/mikkokallio/goblin-tactics/internal/systems"
)

const (
	// SchemaVersion - версия схемы наблюдений. Любое изменение состава,
	// порядка или нормировки признаков обязано увеличить это число:
	// политику, обученную на другой версии, движок отвергает, а не
	// молча кормит вектором другой формы.
	SchemaVersion = 3

	// FeatureCount - длина вектора признаков.
	FeatureCount = 68
)

// RememberedEnemy - запись памяти о враге, которого сеть знаний сейчас
// не видит: последняя известная позиция и давность записи в ходах.
type RememberedEnemy struct {
	UnitID    int
	Pos       domain.Position
	Staleness int
}

// Observation - все признаки одного решения. Значения уже нормированы;
// Vector раскладывает их в плоский вектор фиксированного порядка.
//
// Состав вектора: позиция (2), тактика (17), сектора 8+8 (16),
// локальный ландшафт 5x5 (25), шторм и ход (2), грааль (6). Итого 68.
type Observation struct {
	UnitID int
	Turn   int

	// Remembered - последние известные позиции врагов вне текущей сети
	// знаний, по возрастанию ID. В Vector не входит: переменная длина
	// не ложится в фиксированную схему.
	Remembered []RememberedEnemy

	PosX, PosY float64
	HPFrac     float64

	// Счётчики видимых юнитов. Союзники - только собственное зрение,
	// враги - вся сеть знаний: о дальних противниках союзники
	// "рассказывают", о своих - нет.
	AlliesVisible  float64
	EnemiesVisible float64

	// PackAllies - союзники на соседних клетках (стайный бонус).
	PackAllies float64
	Facing     float64

	// Соседние враги по дугам относительно взгляда юнита.
	EnemiesFront float64
	EnemiesSide  float64
	EnemiesRear  float64

	// В какой дуге сам юнит находится с точки зрения соседних врагов:
	// позиция для удара в спину ценнее лобовой.
	FlankingRear  float64
	FlankingSide  float64
	FlankingFront float64

	NearestAllyDist  float64
	NearestEnemyDist float64
	NearestEnemyHP   float64
	AlliesWithin3    float64
	EnemiesWithin3   float64
	ExploredFrac     float64

	// Сектора среднего радиуса: N, NE, E, SE, S, SW, W, NW.
	SectorAllies  [8]float64
	SectorEnemies [8]float64

	// Ландшафт 5x5 вокруг юнита, построчно с северо-запада.
	Terrain [25]float64

	InSafeZone float64
	TurnFrac   float64

	GrailKnown       float64
	GrailDist        float64
	CarrierVisible   float64
	EntranceDist     float64
	AlliesNearGrail  float64
	EnemiesNearGrail float64
}

// Vector раскладывает наблюдение в вектор из FeatureCount значений.
// Порядок - часть контракта со слоем обучения.
func (o *Observation) Vector() []float64 {
	v := make([]float64, 0, FeatureCount)

	v = append(v, o.PosX, o.PosY)

	v = append(v,
		o.HPFrac,
		o.AlliesVisible,
		o.EnemiesVisible,
		o.PackAllies,
		o.Facing,
		o.EnemiesFront,
		o.EnemiesSide,
		o.EnemiesRear,
		o.FlankingRear,
		o.FlankingSide,
		o.FlankingFront,
		o.NearestAllyDist,
		o.NearestEnemyDist,
		o.NearestEnemyHP,
		o.AlliesWithin3,
		o.EnemiesWithin3,
		o.ExploredFrac,
	)

	v = append(v, o.SectorAllies[:]...)
	v = append(v, o.SectorEnemies[:]...)
	v = append(v, o.Terrain[:]...)
	v = append(v, o.InSafeZone, o.TurnFrac)
	v = append(v,
		o.GrailKnown,
		o.GrailDist,
		o.CarrierVisible,
		o.EntranceDist,
		o.AlliesNearGrail,
		o.EnemiesNearGrail,
	)

	return v
}

// Коды клеток локального ландшафта.
const (
	terrainWall      = 0.0
	terrainFloor     = 1.0
	terrainDifficult = 2.0
	terrainAlly      = 3.0
	terrainEnemy     = 4.0
	terrainStorm     = 5.0
)

// buildObservation собирает наблюдение юнита из его снимка зрения,
// сети знаний и состояния давления. Детали нормировки зафиксированы
// схемой: менять их без роста SchemaVersion нельзя.
func buildObservation(field *domain.Battlefield, u *domain.Unit, snap *systems.Snapshot,
	net *systems.Network, pressure PressureView, turn, passableTotal int) *Observation {

	g := field.Grid

	o := &Observation{
		UnitID: u.ID,
		Turn:   turn,

		PosX:   float64(u.Pos.X) / float64(g.Width),
		PosY:   float64(u.Pos.Y) / float64(g.Height),
		HPFrac: u.HealthFraction(),

		Facing:   float64(u.Facing) / 7.0,
		TurnFrac: math.Min(float64(turn)/200.0, 1.0),
	}

	allies := sortedUnits(field, snap.Allies)
	enemies := sortedUnits(field, net.Enemies)

	o.AlliesVisible = float64(len(allies)) / 20.0
	o.EnemiesVisible = float64(len(enemies)) / 4.0
	o.PackAllies = capAt(float64(len(field.AdjacentAllies(u))), 8) / 8.0

	// Дуги считаются только по соседним врагам: дальние угрозы
	// не влияют на немедленную оборону.
	var front, side, rear, flankRear, flankSide, flankFront float64
	for _, e := range enemies {
		if !u.Pos.IsAdjacent(e.Pos) {
			continue
		}
		switch u.ArcFrom(e.Pos) {
		case domain.ArcFront:
			front++
		case domain.ArcSide:
			side++
		default:
			rear++
		}
		switch e.ArcFrom(u.Pos) {
		case domain.ArcRear:
			flankRear++
		case domain.ArcSide:
			flankSide++
		default:
			flankFront++
		}
	}
	o.EnemiesFront = capAt(front, 3) / 3.0
	o.EnemiesSide = capAt(side, 3) / 3.0
	o.EnemiesRear = capAt(rear, 3) / 3.0
	o.FlankingRear = capAt(flankRear, 2) / 2.0
	o.FlankingSide = capAt(flankSide, 2) / 2.0
	o.FlankingFront = capAt(flankFront, 2) / 2.0

	nearestAlly := 99.0
	alliesWithin3 := 0.0
	for _, a := range allies {
		d := u.Pos.DistanceTo(a.Pos)
		if d < nearestAlly {
			nearestAlly = d
		}
		if d <= 3 {
			alliesWithin3++
		}
	}
	o.NearestAllyDist = math.Min(nearestAlly, 20.0) / 20.0
	o.AlliesWithin3 = capAt(alliesWithin3, 5) / 5.0

	nearestEnemy := 99.0
	nearestEnemyHP := 1.0
	enemiesWithin3 := 0.0
	for _, e := range enemies {
		d := u.Pos.DistanceTo(e.Pos)
		if d < nearestEnemy {
			nearestEnemy = d
			nearestEnemyHP = e.HealthFraction()
		}
		if d <= 3 {
			enemiesWithin3++
		}
	}
	o.NearestEnemyDist = math.Min(nearestEnemy, 20.0) / 20.0
	o.NearestEnemyHP = nearestEnemyHP
	o.EnemiesWithin3 = capAt(enemiesWithin3, 5) / 5.0

	if u.Memory != nil {
		o.ExploredFrac = u.Memory.ExploredFraction(passableTotal)

		for id, s := range u.Memory.Enemies {
			if net.Enemies[id] {
				continue
			}
			o.Remembered = append(o.Remembered, RememberedEnemy{
				UnitID:    id,
				Pos:       s.Pos,
				Staleness: turn - s.Turn,
			})
		}
		sort.Slice(o.Remembered, func(i, j int) bool {
			return o.Remembered[i].UnitID < o.Remembered[j].UnitID
		})
	}

	// Сектора среднего радиуса: ближний бой (манхэттен <= 3) уже покрыт
	// признаками выше, дальше 12 клеток - за горизонтом планирования.
	for _, a := range allies {
		if s, ok := sectorOf(u.Pos, a.Pos); ok {
			o.SectorAllies[s]++
		}
	}
	for _, e := range enemies {
		if s, ok := sectorOf(u.Pos, e.Pos); ok {
			o.SectorEnemies[s]++
		}
	}
	for i := range o.SectorAllies {
		o.SectorAllies[i] = capAt(o.SectorAllies[i], 5) / 5.0
		o.SectorEnemies[i] = capAt(o.SectorEnemies[i], 5) / 5.0
	}

	// Локальный ландшафт 5x5. Юниты перекрывают клетку, шторм -
	// труднопроходимость: политика должна видеть, что клетка опасна,
	// даже если по ней можно пройти.
	i := 0
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			o.Terrain[i] = terrainCode(field, u, pressure, u.Pos.X+dx, u.Pos.Y+dy) / 5.0
			i++
		}
	}

	if pressure.InSafeZone(u.Pos) {
		o.InSafeZone = 1.0
	}

	o.GrailDist = 1.0
	o.EntranceDist = 1.0
	if pressure.GrailActive {
		grailIdx := g.Index(pressure.GrailPos.X, pressure.GrailPos.Y)
		if net.Tiles[grailIdx] || (u.Memory != nil && u.Memory.Knows(grailIdx)) {
			o.GrailKnown = 1.0
			o.GrailDist = math.Min(u.Pos.DistanceTo(pressure.GrailPos), 40.0) / 40.0
		}

		if pressure.GrailCarrier >= 0 && net.Enemies[pressure.GrailCarrier] {
			o.CarrierVisible = 1.0
		}

		entrance := 99.0
		for _, c := range g.ExtractionCells {
			if d := u.Pos.DistanceTo(c); d < entrance {
				entrance = d
			}
		}
		o.EntranceDist = math.Min(entrance, 40.0) / 40.0

		var near, hostile float64
		for _, a := range allies {
			if a.Pos.DistanceTo(pressure.GrailPos) <= 5 {
				near++
			}
		}
		for _, e := range enemies {
			if e.Pos.DistanceTo(pressure.GrailPos) <= 5 {
				hostile++
			}
		}
		o.AlliesNearGrail = capAt(near, 5) / 5.0
		o.EnemiesNearGrail = capAt(hostile, 5) / 5.0
	}

	return o
}

// terrainCode возвращает код клетки для локального окна.
func terrainCode(field *domain.Battlefield, u *domain.Unit, pressure PressureView, x, y int) float64 {
	g := field.Grid
	if !g.InBounds(x, y) {
		return terrainWall
	}
	if other := field.UnitAt(x, y); other != nil {
		if other.Faction == u.Faction {
			return terrainAlly
		}
		return terrainEnemy
	}
	if !g.Passable(x, y) {
		return terrainWall
	}
	if !pressure.InSafeZone(domain.Position{X: x, Y: y}) {
		return terrainStorm
	}
	if g.At(x, y).Kind == domain.TileDifficult {
		return terrainDifficult
	}
	return terrainFloor
}

// sectorOf относит относительную позицию к одному из восьми секторов.
// Возвращает false для ближней зоны и для всего, что дальше 12 клеток
// (манхэттенская метрика).
func sectorOf(from, to domain.Position) (int, bool) {
	dx := to.X - from.X
	dy := to.Y - from.Y

	dist := from.Manhattan(to)
	if dist <= 3 || dist > 12 {
		return 0, false
	}

	ax, ay := dx, dy
	if ax < 0 {
		ax = -ax
	}
	if ay < 0 {
		ay = -ay
	}

	switch {
	case dx > ay:
		return 2, true // E
	case dx < -ay:
		return 6, true // W
	case dy > ax:
		return 4, true // S
	case dy < -ax:
		return 0, true // N
	case dx > 0 && dy > 0:
		return 3, true // SE
	case dx < 0 && dy > 0:
		return 5, true // SW
	case dx > 0 && dy < 0:
		return 1, true // NE
	}
	return 7, true // NW
}

// sortedUnits превращает множество ID в срез живых юнитов,
// упорядоченный по ID. Фиксированный порядок обхода держит
// наблюдение детерминированным при равных дистанциях.
func sortedUnits(field *domain.Battlefield, ids map[int]bool) []*domain.Unit {
	out := make([]*domain.Unit, 0, len(ids))
	for id := range ids {
		if u := field.Unit(id); u != nil && u.Alive {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// capAt ограничивает счётчик сверху перед нормировкой.
func capAt(v, limit float64) float64 {
	return math.Min(v, limit)
}
