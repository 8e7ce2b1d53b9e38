package dungeon

import (
	"fmt"
	"math/rand"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
)

// Side - сторона карты, закреплённая за фракцией.
// Рыцари заходят с запада, гоблины обживают восток.
type Side uint8

const (
	SideWest Side = iota
	SideEast
)

func (s Side) String() string {
	if s == SideWest {
		return "west"
	}
	return "east"
}

// StartingPositions подбирает count стартовых клеток на своей стороне.
// Кандидаты берутся из комнат крайней трети карты; если в трети комнат
// не оказалось, полоса расширяется до половины. Клетка принимается,
// только если она проходима, свободна и не заезжает на чужую половину -
// иначе фракции перемешались бы в общем зале арены.
func (l *Layout) StartingPositions(rng *rand.Rand, side Side, count int) ([]domain.Position, error) {
	rooms := l.sideRooms(side)
	if len(rooms) == 0 {
		return nil, fmt.Errorf("no rooms on the %s side to spawn in", side)
	}

	half := l.Grid.Width / 2
	onOwnHalf := func(x int) bool {
		if side == SideWest {
			return x < half
		}
		return x >= half
	}

	positions := make([]domain.Position, 0, count)
	taken := make(map[domain.Position]bool, count)

	for attempts := 0; len(positions) < count && attempts < 1000; attempts++ {
		room := rooms[rng.Intn(len(rooms))]
		p := domain.Position{
			X: room.X + rng.Intn(room.W),
			Y: room.Y + rng.Intn(room.H),
		}
		if l.Grid.Passable(p.X, p.Y) && !taken[p] && onOwnHalf(p.X) {
			taken[p] = true
			positions = append(positions, p)
		}
	}

	if len(positions) < count {
		return nil, fmt.Errorf("%s spawn region too small: placed %d of %d units", side, len(positions), count)
	}
	return positions, nil
}

func (l *Layout) sideRooms(side Side) []Rect {
	third := l.Grid.Width / 3
	var out []Rect
	for _, r := range l.Rooms {
		c := r.Center()
		if (side == SideWest && c.X < third) || (side == SideEast && c.X > 2*third) {
			out = append(out, r)
		}
	}
	if len(out) > 0 {
		return out
	}

	// В крайней трети пусто - расширяем поиск до половины карты.
	// Зал арены с центром ровно посередине достаётся обеим сторонам.
	half := l.Grid.Width / 2
	for _, r := range l.Rooms {
		c := r.Center()
		if (side == SideWest && c.X <= half) || (side == SideEast && c.X >= half) {
			out = append(out, r)
		}
	}
	return out
}

// placeGrail размечает режим грааля: артефакт прячется в комнате,
// самой дальней от входа рыцарей, а сам вход становится зоной эвакуации.
func placeGrail(l *Layout) {
	west := l.Rooms[0]
	for _, r := range l.Rooms[1:] {
		if r.Center().X < west.Center().X {
			west = r
		}
	}
	entry := west.Center()

	// Зона эвакуации - западный край входной комнаты на уровне её центра
	cells := make([]domain.Position, 0, 3)
	for dy := -1; dy <= 1; dy++ {
		p := domain.Position{X: west.X, Y: entry.Y + dy}
		if west.Contains(p) && l.Grid.Passable(p.X, p.Y) {
			cells = append(cells, p)
		}
	}
	if len(cells) == 0 {
		cells = append(cells, entry)
	}
	l.Entrances = cells

	farthest := west
	best := -1.0
	for _, r := range l.Rooms {
		if d := entry.DistanceTo(r.Center()); d > best {
			best = d
			farthest = r
		}
	}
	grail := farthest.Center()
	l.Grail = &grail

	l.Grid.SetObjective(grail)
	l.Grid.SetExtraction(cells)
}
