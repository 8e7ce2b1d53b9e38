package engine

import (
	"strings"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
)

// buildHeader собирает стартовый кадр: ландшафт и состав на момент
// развертывания. Карта кодируется построчно, чтобы кадр читался и
// глазами в сыром JSON.
func buildHeader(b *Battle) *api.BattleHeader {
	g := b.field.Grid

	rows := make([]string, g.Height)
	var sb strings.Builder
	for y := 0; y < g.Height; y++ {
		sb.Reset()
		for x := 0; x < g.Width; x++ {
			switch g.At(x, y).Kind {
			case domain.TileDifficult:
				sb.WriteByte('~')
			case domain.TileFloor:
				sb.WriteByte('.')
			default:
				sb.WriteByte('#')
			}
		}
		rows[y] = sb.String()
	}

	h := &api.BattleHeader{
		SchemaVersion: SchemaVersion,
		Seed:          b.cfg.Seed,
		Width:         g.Width,
		Height:        g.Height,
		Map:           rows,
		Units:         buildUnitViews(b),
		MaxTurns:      b.cfg.MaxTurns,
		StormEnabled:  b.storm.enabled,
		GrailMode:     b.grail.active,
	}

	if b.grail.active {
		h.Grail = &api.CellRef{X: b.grail.pos.X, Y: b.grail.pos.Y}
		for _, c := range g.ExtractionCells {
			h.Extraction = append(h.Extraction, api.CellRef{X: c.X, Y: c.Y})
		}
	}
	return h
}

// buildTurnFrame собирает снимок боя на конец хода.
func buildTurnFrame(b *Battle) *api.TurnFrame {
	f := &api.TurnFrame{
		Turn:   b.turn,
		Units:  buildUnitViews(b),
		Events: buildEventViews(b.turnEvents),
	}

	if b.storm.enabled {
		f.Storm = &api.StormView{
			Shrinking: b.storm.shrinking(b.turn),
			Radius:    b.storm.radius,
			CenterX:   b.storm.center.X,
			CenterY:   b.storm.center.Y,
		}
	}

	if b.grail.active {
		pos := b.grail.position(b.field)
		f.Grail = &api.GrailView{X: pos.X, Y: pos.Y, CarrierID: b.grail.carrier}
	}
	return f
}

// buildUnitViews проецирует юнитов в DTO. Погибшие в этом ходу еще
// присутствуют в списке с Alive=false, пока их не вычистит RemoveDead.
func buildUnitViews(b *Battle) []api.UnitView {
	views := make([]api.UnitView, 0, len(b.field.Units))
	for _, u := range b.field.Units {
		views = append(views, api.UnitView{
			ID:            u.ID,
			Faction:       u.Faction.String(),
			X:             u.Pos.X,
			Y:             u.Pos.Y,
			HP:            u.HP,
			MaxHP:         u.MaxHP,
			Facing:        int(u.Facing),
			Alive:         u.Alive,
			CarryingGrail: b.grail.active && b.grail.carrier == u.ID,
		})
	}
	return views
}

func buildEventViews(events []domain.Event) []api.EventView {
	if len(events) == 0 {
		return nil
	}
	views := make([]api.EventView, 0, len(events))
	for _, ev := range events {
		views = append(views, api.EventView{
			Type:   ev.Type.String(),
			Actor:  ev.Actor,
			Target: ev.Target,
			Value:  ev.Value,
			X:      ev.Pos.X,
			Y:      ev.Pos.Y,
		})
	}
	return views
}

// buildDecision упаковывает решение политики для записи опыта.
func buildDecision(turn, unitID int, obs *Observation, action domain.ActionType) *api.DecisionView {
	return &api.DecisionView{
		Turn:          turn,
		UnitID:        unitID,
		SchemaVersion: SchemaVersion,
		Features:      obs.Vector(),
		Action:        uint8(action),
		ActionName:    action.String(),
	}
}

// buildResult собирает итоговый кадр.
func buildResult(b *Battle) *api.BattleResult {
	r := &api.BattleResult{
		Outcome:            b.outcome.String(),
		Turns:              b.turn,
		KnightsAlive:       b.field.FactionCount(domain.FactionKnights),
		GoblinsAlive:       b.field.FactionCount(domain.FactionGoblins),
		Seed:               b.cfg.Seed,
		ContractViolations: b.violations,
	}
	if winner, ok := b.outcome.Winner(); ok {
		r.Winner = winner.String()
	}
	return r
}
