package trainer

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
	"github.com/mikkokallio/goblin-tactics/internal/engine"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
	"github.com/mikkokallio/goblin-tactics/pkg/logger"
)

// Policy - обучаемый решатель гоблинов. Действие выбирает агент по
// вектору признаков; сам решатель ведет бухгалтерию переходов:
// решение открывает переход, следующее решение того же юнита (или его
// смерть, или конец боя) закрывает его и считает награду.
//
// Policy одновременно Decider и Sink: решения он видит сам, а урон,
// убийства и смерти забирает из потока событий боя.
type Policy struct {
	agent    *Agent
	rewards  *rewardEngine
	training bool

	pending map[int]*decisionContext
	damage  map[int]int
	kills   map[int]int
	// history - последние клетки, на которые юнит ходил (окно 4),
	// для штрафа за топтание.
	history map[int][]domain.Position

	episodeReward float64
	transitions   int

	// OnTransition, если задан, получает каждый закрытый переход.
	// Тренер вешает сюда выгрузку опыта на диск.
	OnTransition func(unitID int, t Transition)

	log *logrus.Entry
}

var (
	_ engine.Decider = (*Policy)(nil)
	_ engine.Sink    = (*Policy)(nil)
)

// NewPolicy оборачивает агента в решатель. В режиме обучения политика
// исследует (epsilon-жадно) и копит переходы; вне его - только жадный
// выбор действия. rewardExpr - необязательное CEL-выражение награды.
func NewPolicy(agent *Agent, rewardExpr string, training bool) (*Policy, error) {
	rewards, err := newRewardEngine(rewardExpr)
	if err != nil {
		return nil, err
	}

	return &Policy{
		agent:    agent,
		rewards:  rewards,
		training: training,
		pending:  make(map[int]*decisionContext),
		damage:   make(map[int]int),
		kills:    make(map[int]int),
		history:  make(map[int][]domain.Position),
		log: logger.Log.WithFields(logrus.Fields{
			"component": "policy",
		}),
	}, nil
}

// EpisodeReward возвращает сумму наград текущего эпизода.
func (p *Policy) EpisodeReward() float64 { return p.episodeReward }

// Transitions возвращает число закрытых переходов текущего эпизода.
func (p *Policy) Transitions() int { return p.transitions }

// Decide реализует engine.Decider.
func (p *Policy) Decide(view *engine.TurnView, u *domain.Unit) (domain.ActionType, error) {
	state := view.Obs.Vector()

	if p.training {
		p.closePrevious(view, u, state)
	}

	idx, err := p.agent.Act(state, p.training)
	if err != nil {
		return domain.ActionHold, err
	}
	action := domain.ActionType(idx)

	if p.training {
		p.pending[u.ID] = p.openContext(view, u, state, action)
	}
	return action, nil
}

// closePrevious закрывает переход, открытый прошлым решением юнита:
// текущее наблюдение становится s', награда собирается из контекста
// решения и накопленных событий.
func (p *Policy) closePrevious(view *engine.TurnView, u *domain.Unit, next []float64) {
	ctx, ok := p.pending[u.ID]
	if !ok {
		return
	}
	delete(p.pending, u.ID)

	facts := &outcomeFacts{
		damage:          p.damage[u.ID],
		kills:           p.kills[u.ID],
		hasEnd:          true,
		endPos:          u.Pos,
		endNearestEnemy: -1,
		endInSafeZone:   view.Pressure.InSafeZone(u.Pos),
	}
	delete(p.damage, u.ID)
	delete(p.kills, u.ID)

	if e := nearestOf(view.Field, u, view.Snapshot.Enemies); e != nil {
		facts.endNearestEnemy = u.Pos.DistanceTo(e.Pos)
	}

	if ctx.action.IsMove() {
		hist := p.history[u.ID]
		for _, prev := range hist {
			if prev == u.Pos {
				facts.oscillated = true
				break
			}
		}
		hist = append(hist, u.Pos)
		if len(hist) > 4 {
			hist = hist[len(hist)-4:]
		}
		p.history[u.ID] = hist
	}

	p.record(u.ID, ctx, facts, next, false)
}

// openContext фиксирует до-ходовое состояние для будущей награды.
func (p *Policy) openContext(view *engine.TurnView, u *domain.Unit, state []float64, action domain.ActionType) *decisionContext {
	ctx := &decisionContext{
		state:     state,
		action:    action,
		turn:      view.Turn,
		pos:       u.Pos,
		grailMode: view.Pressure.GrailActive,
	}

	if e := nearestOf(view.Field, u, view.Snapshot.Enemies); e != nil {
		ctx.sawEnemy = true
		ctx.nearestEnemyPos = e.Pos
	} else if e := nearestOf(view.Field, u, view.Network.Enemies); e != nil {
		ctx.netEnemy = true
		ctx.nearestNetEnemy = e.Pos
	}

	for _, a := range liveUnits(view.Field, view.Snapshot.Allies) {
		d := u.Pos.DistanceTo(a.Pos)
		if d <= 3 {
			ctx.alliesWithin3++
		}
		if d <= 4 {
			ctx.packed = true
		}
		if d <= 5 {
			ctx.crowded++
		}
	}

	if dir, ok := action.MoveDirection(); ok {
		dest := u.Pos.Step(dir)
		g := view.Field.Grid
		if g.InBounds(dest.X, dest.Y) {
			if u.Memory != nil && !u.Memory.Knows(g.Index(dest.X, dest.Y)) {
				ctx.newTile = true
			}
			destCrowd := 0
			for _, a := range liveUnits(view.Field, view.Snapshot.Allies) {
				if dest.DistanceTo(a.Pos) <= 5 {
					destCrowd++
				}
			}
			ctx.spreadGain = destCrowd < ctx.crowded
		}
	}

	return ctx
}

// record считает награду и кладет переход в буфер опыта.
func (p *Policy) record(unitID int, ctx *decisionContext, facts *outcomeFacts, next []float64, done bool) {
	r := p.rewards.compute(ctx, facts)

	t := Transition{
		State:  ctx.state,
		Action: int(ctx.action),
		Reward: r,
		Next:   next,
		Done:   done,
	}
	p.agent.Remember(t)

	p.episodeReward += r
	p.transitions++
	if p.OnTransition != nil {
		p.OnTransition(unitID, t)
	}
}

// OnBattleStart сбрасывает бухгалтерию эпизода.
func (p *Policy) OnBattleStart(*api.BattleHeader) error {
	p.pending = make(map[int]*decisionContext)
	p.damage = make(map[int]int)
	p.kills = make(map[int]int)
	p.history = make(map[int][]domain.Position)
	p.episodeReward = 0
	p.transitions = 0
	return nil
}

// OnDecision - решения политика видит сама, кадр не нужен.
func (p *Policy) OnDecision(*api.DecisionView) error { return nil }

// OnTurn разносит события хода по юнитам: урон и убийства копятся до
// закрытия перехода, смерть закрывает переход сразу. В конце хода -
// один шаг обучения.
func (p *Policy) OnTurn(frame *api.TurnFrame) error {
	if !p.training {
		return nil
	}

	for _, ev := range frame.Events {
		switch ev.Type {
		case domain.EventDamage.String():
			if _, ok := p.pending[ev.Actor]; ok {
				p.damage[ev.Actor] += ev.Value
			}
		case domain.EventKill.String():
			if _, ok := p.pending[ev.Actor]; ok {
				p.kills[ev.Actor]++
			}
		case domain.EventDeath.String():
			p.closeDead(ev.Actor)
		}
	}

	p.agent.TrainStep()
	return nil
}

// closeDead закрывает переход погибшего терминально. Штраф за смерть
// перекрывает всё, что юнит успел сделать в этом ходу.
func (p *Policy) closeDead(unitID int) {
	ctx, ok := p.pending[unitID]
	if !ok {
		return
	}
	delete(p.pending, unitID)
	delete(p.damage, unitID)
	delete(p.kills, unitID)
	delete(p.history, unitID)

	p.record(unitID, ctx, &outcomeFacts{died: true}, ctx.state, true)
}

// OnBattleEnd терминально закрывает переходы выживших.
func (p *Policy) OnBattleEnd(*api.BattleResult) error {
	if !p.training {
		return nil
	}

	ids := make([]int, 0, len(p.pending))
	for id := range p.pending {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		ctx := p.pending[id]
		facts := &outcomeFacts{damage: p.damage[id], kills: p.kills[id]}
		p.record(id, ctx, facts, ctx.state, true)
	}

	p.pending = make(map[int]*decisionContext)
	p.damage = make(map[int]int)
	p.kills = make(map[int]int)

	p.log.WithFields(logrus.Fields{
		"transitions": p.transitions,
		"reward":      p.episodeReward,
	}).Debug("Episode transitions closed")
	return nil
}

// liveUnits превращает множество ID в срез живых юнитов по
// возрастанию ID.
func liveUnits(field *domain.Battlefield, ids map[int]bool) []*domain.Unit {
	ordered := make([]int, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Ints(ordered)

	out := make([]*domain.Unit, 0, len(ordered))
	for _, id := range ordered {
		if u := field.Unit(id); u != nil && u.Alive {
			out = append(out, u)
		}
	}
	return out
}

// nearestOf выбирает ближайшего живого юнита из множества ID
// (при равных дистанциях - меньший ID).
func nearestOf(field *domain.Battlefield, u *domain.Unit, ids map[int]bool) *domain.Unit {
	var best *domain.Unit
	bestDist := 0.0
	for _, cand := range liveUnits(field, ids) {
		d := u.Pos.DistanceTo(cand.Pos)
		if best == nil || d < bestDist {
			best = cand
			bestDist = d
		}
	}
	return best
}
