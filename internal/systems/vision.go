package systems

import (
	"github.com/mikkokallio/goblin-tactics/internal/domain"
	"github.com/mikkokallio/goblin-tactics/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Snapshot - сырой снимок зрения одного юнита на текущий ход.
// Пересчитывается целиком каждый ход и нигде не кэшируется между ходами.
type Snapshot struct {
	UnitID int
	// Tiles - индексы видимых клеток (включая клетку самого юнита).
	Tiles map[int]bool
	// Allies и Enemies - ID юнитов, стоящих на видимых клетках.
	Allies  map[int]bool
	Enemies map[int]bool
}

// Sees проверяет, видна ли клетка.
func (s *Snapshot) Sees(idx int) bool {
	return s.Tiles[idx]
}

// ComputeSnapshot строит снимок зрения юнита: все клетки в евклидовом
// радиусе, до которых луч доходит без препятствий. Луч обрывается на
// первой блокирующей клетке; сама она и всё за ней невидимы.
func ComputeSnapshot(bf *domain.Battlefield, u *domain.Unit) *Snapshot {
	snap := &Snapshot{
		UnitID:  u.ID,
		Tiles:   make(map[int]bool),
		Allies:  make(map[int]bool),
		Enemies: make(map[int]bool),
	}

	g := bf.Grid
	r := u.VisionRadius
	rSq := r * r

	// Своя клетка видна всегда
	snap.Tiles[g.Index(u.Pos.X, u.Pos.Y)] = true

	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if dx*dx+dy*dy > rSq {
				continue
			}
			x, y := u.Pos.X+dx, u.Pos.Y+dy
			if !g.InBounds(x, y) {
				continue
			}
			// Блокирующая клетка сама не видна
			if g.BlocksSight(x, y) {
				continue
			}
			if HasLineOfSight(g, u.Pos, domain.Position{X: x, Y: y}) {
				snap.Tiles[g.Index(x, y)] = true
			}
		}
	}

	// Отмечаем юнитов на видимых клетках
	for _, other := range bf.Units {
		if !other.Alive || other.ID == u.ID {
			continue
		}
		if snap.Tiles[g.Index(other.Pos.X, other.Pos.Y)] {
			if other.Faction == u.Faction {
				snap.Allies[other.ID] = true
			} else {
				snap.Enemies[other.ID] = true
			}
		}
	}

	return snap
}

// ComputeAllSnapshots строит снимки зрения всех живых юнитов.
func ComputeAllSnapshots(bf *domain.Battlefield) map[int]*Snapshot {
	snaps := make(map[int]*Snapshot, len(bf.Units))
	for _, u := range bf.Units {
		if u.Alive {
			snaps[u.ID] = ComputeSnapshot(bf, u)
		}
	}
	return snaps
}

// Network - сеть знаний юнита: объединение снимков зрения всех союзников,
// достижимых по цепочке взаимной видимости. Живет один ход.
type Network struct {
	UnitID int
	// Members - ID юнитов компоненты связности (включая владельца).
	Members []int
	// Tiles - объединение видимых клеток компоненты.
	Tiles map[int]bool
	// Allies и Enemies - ID юнитов, стоящих на клетках сети.
	Allies  map[int]bool
	Enemies map[int]bool
}

// ResolveNetworks разрешает сети знаний для всех живых юнитов.
// Ребро между союзниками требует видимости в обе стороны; через
// границу фракций связь не проходит. Юнит без видимых союзников
// получает сеть, равную собственному снимку.
func ResolveNetworks(bf *domain.Battlefield, snaps map[int]*Snapshot) map[int]*Network {
	networks := make(map[int]*Network, len(snaps))

	visited := make(map[int]bool, len(snaps))
	for _, u := range bf.Units {
		if !u.Alive || visited[u.ID] {
			continue
		}

		// Обход компоненты связности по взаимной видимости
		component := []int{u.ID}
		visited[u.ID] = true
		for head := 0; head < len(component); head++ {
			cur := bf.Unit(component[head])
			curSnap := snaps[cur.ID]
			if curSnap == nil {
				continue
			}
			for allyID := range curSnap.Allies {
				if visited[allyID] {
					continue
				}
				allySnap := snaps[allyID]
				// Взаимная видимость обязательна для ребра
				if allySnap == nil || !allySnap.Allies[cur.ID] {
					continue
				}
				visited[allyID] = true
				component = append(component, allyID)
			}
		}

		// Объединяем снимки компоненты
		tiles := make(map[int]bool)
		for _, id := range component {
			for idx := range snaps[id].Tiles {
				tiles[idx] = true
			}
		}

		allies := make(map[int]bool)
		enemies := make(map[int]bool)
		for _, other := range bf.Units {
			if !other.Alive {
				continue
			}
			if !tiles[bf.Grid.Index(other.Pos.X, other.Pos.Y)] {
				continue
			}
			if other.Faction == u.Faction {
				allies[other.ID] = true
			} else {
				enemies[other.ID] = true
			}
		}

		for _, id := range component {
			net := &Network{
				UnitID:  id,
				Members: component,
				Tiles:   tiles,
				Allies:  allies,
				Enemies: enemies,
			}
			// Сам юнит не входит в список видимых союзников
			if len(allies) > 0 {
				own := make(map[int]bool, len(allies))
				for aid := range allies {
					if aid != id {
						own[aid] = true
					}
				}
				net.Allies = own
			}
			networks[id] = net
		}
	}

	return networks
}

// MergeMemory вливает сеть знаний юнита в его персистентную память:
// клетки ландшафта и последние известные позиции врагов. Возвращает
// число впервые разведанных клеток. Вызывается один раз за ход для
// каждого юнита, на его слоте инициативы.
func MergeMemory(bf *domain.Battlefield, u *domain.Unit, net *Network, turn int) int {
	if u.Memory == nil || net == nil {
		return 0
	}

	discovered := u.Memory.RememberTiles(net.Tiles)

	for enemyID := range net.Enemies {
		if enemy := bf.Unit(enemyID); enemy != nil && enemy.Alive {
			u.Memory.RememberEnemy(enemyID, enemy.Pos, turn)
		}
	}

	if discovered > 0 {
		logger.Log.WithFields(logrus.Fields{
			"component": "vision_system",
			"unit_id":   u.ID,
			"turn":      turn,
			"new_tiles": discovered,
			"known":     len(u.Memory.Tiles),
		}).Debug("Memory merged with knowledge network.")
	}

	return discovered
}

// KnownTiles возвращает область поиска пути юнита: объединение памяти
// ландшафта и текущего снимка зрения. Совершенно незнакомые клетки в
// маршруты не попадают.
func KnownTiles(u *domain.Unit, snap *Snapshot) map[int]bool {
	size := 0
	if u.Memory != nil {
		size += len(u.Memory.Tiles)
	}
	if snap != nil {
		size += len(snap.Tiles)
	}
	known := make(map[int]bool, size)
	if u.Memory != nil {
		for idx := range u.Memory.Tiles {
			known[idx] = true
		}
	}
	if snap != nil {
		for idx := range snap.Tiles {
			known[idx] = true
		}
	}
	return known
}
