package engine

import (
	"math"

	"github.com/mikkokallio/goblin-tactics/internal/config"
	"github.com/mikkokallio/goblin-tactics/internal/domain"
)

// --- ШТОРМ ---

// stormState - сжимающаяся безопасная зона. Радиус стартует с большей
// стороны карты (вся карта безопасна), после startTurn сокращается на
// shrinkRate за ход и никогда не падает ниже minRadius: финальный
// пятачок остается пригодным для боя.
type stormState struct {
	enabled    bool
	damage     int
	startTurn  int
	shrinkRate float64
	minRadius  float64

	center domain.Position
	radius float64
}

// newStormState готовит шторм для карты заданного размера.
func newStormState(cfg config.StormSettings, g *domain.Grid) *stormState {
	return &stormState{
		enabled:    cfg.Enabled,
		damage:     cfg.Damage,
		startTurn:  cfg.StartTurn,
		shrinkRate: cfg.ShrinkRate,
		minRadius:  cfg.MinRadius,
		center:     g.Centroid(),
		radius:     math.Max(float64(g.Width), float64(g.Height)),
	}
}

// shrinking сообщает, началось ли сжатие.
func (s *stormState) shrinking(turn int) bool {
	return s.enabled && turn >= s.startTurn
}

// advance сжимает зону в конце хода.
func (s *stormState) advance(turn int) {
	if !s.shrinking(turn) {
		return
	}
	s.radius = math.Max(s.radius-s.shrinkRate, s.minRadius)
}

// contains отвечает, безопасна ли клетка. Пока шторм выключен,
// безопасно везде.
func (s *stormState) contains(p domain.Position) bool {
	if !s.enabled {
		return true
	}
	return p.DistanceTo(s.center) <= s.radius
}

// apply наносит урон всем живым юнитам за пределами зоны. Возвращает
// события урона и смертей; выживание в шторме не предполагается.
func (s *stormState) apply(field *domain.Battlefield, turn int) []domain.Event {
	if !s.shrinking(turn) {
		return nil
	}

	var events []domain.Event
	for _, u := range field.LiveUnits() {
		if s.contains(u.Pos) {
			continue
		}
		actual := u.TakeDamage(s.damage)
		events = append(events, domain.Event{
			Turn:  turn,
			Type:  domain.EventStorm,
			Actor: u.ID,
			Value: actual,
			Pos:   u.Pos,
		})
		if !u.Alive {
			field.ReleaseCell(u)
			events = append(events, domain.Event{
				Turn:  turn,
				Type:  domain.EventDeath,
				Actor: u.ID,
				Pos:   u.Pos,
			})
		}
	}
	return events
}

// --- ГРААЛЬ ---

// grailState - режим "захвата грааля". Грааль лежит на клетке до тех
// пор, пока рыцарь не встанет на нее; носильщик объявляется через
// carrier, сам юнит флага не несет. Смерть носильщика роняет грааль
// на клетке смерти.
type grailState struct {
	active  bool
	pos     domain.Position
	carrier int // ID носильщика, -1 - грааль на земле
}

func newGrailState(active bool, pos domain.Position) *grailState {
	return &grailState{active: active, pos: pos, carrier: -1}
}

// position возвращает текущую клетку грааля: позицию носильщика,
// если он есть, иначе клетку на земле.
func (gr *grailState) position(field *domain.Battlefield) domain.Position {
	if gr.carrier >= 0 {
		if u := field.Unit(gr.carrier); u != nil && u.Alive {
			return u.Pos
		}
	}
	return gr.pos
}

// tryPickup поднимает грааль, если юнит-рыцарь закончил движение на
// его клетке. Гоблины грааль не трогают - они его охраняют.
func (gr *grailState) tryPickup(u *domain.Unit, turn int) (domain.Event, bool) {
	if !gr.active || gr.carrier >= 0 {
		return domain.Event{}, false
	}
	if u.Faction != domain.FactionKnights || u.Pos != gr.pos {
		return domain.Event{}, false
	}
	gr.carrier = u.ID
	return domain.Event{
		Turn:  turn,
		Type:  domain.EventPickup,
		Actor: u.ID,
		Pos:   u.Pos,
	}, true
}

// dropOnDeath роняет грааль, если погибший был носильщиком.
func (gr *grailState) dropOnDeath(u *domain.Unit, turn int) (domain.Event, bool) {
	if !gr.active || gr.carrier != u.ID {
		return domain.Event{}, false
	}
	gr.carrier = -1
	gr.pos = u.Pos
	return domain.Event{
		Turn:  turn,
		Type:  domain.EventDrop,
		Actor: u.ID,
		Pos:   u.Pos,
	}, true
}

// extracted проверяет условие немедленной победы рыцарей: живой
// носильщик стоит в зоне эвакуации в конце хода.
func (gr *grailState) extracted(field *domain.Battlefield) (*domain.Unit, bool) {
	if !gr.active || gr.carrier < 0 {
		return nil, false
	}
	u := field.Unit(gr.carrier)
	if u == nil || !u.Alive {
		return nil, false
	}
	if field.Grid.IsExtraction(u.Pos) {
		return u, true
	}
	return nil, false
}

// pressureView собирает срез состояния давления для наблюдений и AI.
func pressureView(storm *stormState, grail *grailState, field *domain.Battlefield, turn int) PressureView {
	pv := PressureView{
		StormEnabled:   storm.enabled,
		StormShrinking: storm.shrinking(turn),
		SafeCenter:     storm.center,
		SafeRadius:     storm.radius,
		GrailActive:    grail.active,
		GrailCarrier:   -1,
	}
	if grail.active {
		pv.GrailPos = grail.position(field)
		pv.GrailCarrier = grail.carrier
	}
	return pv
}
