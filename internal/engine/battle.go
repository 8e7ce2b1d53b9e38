package engine

import (
	"fmt"
	"math/rand"

	"github.com/mikkokallio/goblin-tactics/internal/config"
	"github.com/mikkokallio/goblin-tactics/internal/domain"
	"github.com/mikkokallio/goblin-tactics/internal/systems"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
	"github.com/mikkokallio/goblin-tactics/pkg/dungeon"
	"github.com/mikkokallio/goblin-tactics/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Battle - одна изолированная симуляция боя. Всю случайность она берет
// из собственного генератора, посеянного из настроек: один и тот же сид
// дает байт-в-байт одинаковый бой.
type Battle struct {
	cfg    *config.Settings
	rng    *rand.Rand
	field  *domain.Battlefield
	layout *dungeon.Layout
	storm  *stormState
	grail  *grailState

	deciders map[domain.Faction]Decider
	sinks    []Sink
	log      *logrus.Entry

	turn       int
	outcome    domain.Outcome
	turnEvents []domain.Event
	violations int

	// Число проходимых клеток карты, кэш для нормировки разведки.
	passableTotal int
}

// NewBattle генерирует карту, расставляет фракции и готовит бой к
// запуску. Рыцари занимают западную треть, гоблины - восточную,
// ID идут подряд: сначала рыцари, затем гоблины.
func NewBattle(cfg *config.Settings, knightAI, goblinAI Decider, sinks ...Sink) (*Battle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate settings: %w", err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	layout, err := dungeon.Generate(dungeon.Params{
		Width:           cfg.Map.Width,
		Height:          cfg.Map.Height,
		Arena:           cfg.Map.Arena,
		DifficultChance: cfg.Map.DifficultChance,
		MaxDepth:        cfg.Map.MaxDepth,
		MinRoomSize:     cfg.Map.MinRoomSize,
		MaxRoomSize:     cfg.Map.MaxRoomSize,
		GrailMode:       cfg.GrailMode,
	}, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to generate map: %w", err)
	}

	field := domain.NewBattlefield(layout.Grid)

	b := &Battle{
		cfg:    cfg,
		rng:    rng,
		field:  field,
		layout: layout,
		storm:  newStormState(cfg.Storm, layout.Grid),
		deciders: map[domain.Faction]Decider{
			domain.FactionKnights: knightAI,
			domain.FactionGoblins: goblinAI,
		},
		sinks:         sinks,
		passableTotal: layout.Grid.PassableCount(),
		log: logger.Log.WithFields(logrus.Fields{
			"component": "battle",
			"seed":      cfg.Seed,
		}),
	}

	var grailPos domain.Position
	if layout.Grail != nil {
		grailPos = *layout.Grail
	}
	b.grail = newGrailState(cfg.GrailMode, grailPos)

	if err := b.deploy(domain.FactionKnights, dungeon.SideWest, cfg.Knights, 0); err != nil {
		return nil, err
	}
	knights := len(field.Units)
	if err := b.deploy(domain.FactionGoblins, dungeon.SideEast, cfg.Goblins, knights); err != nil {
		return nil, err
	}

	return b, nil
}

// deploy расставляет одну фракцию на ее половине карты.
func (b *Battle) deploy(f domain.Faction, side dungeon.Side, cfg config.FactionSettings, firstID int) error {
	count := intInRange(b.rng, cfg.CountMin, cfg.CountMax)
	positions, err := b.layout.StartingPositions(b.rng, side, count)
	if err != nil {
		return fmt.Errorf("failed to deploy %s: %w", f, err)
	}
	for i, pos := range positions {
		hp := intInRange(b.rng, cfg.HPMin, cfg.HPMax)
		u := domain.NewUnit(firstID+i, f, pos, hp, cfg.DamageMin, cfg.DamageMax, cfg.Speed, cfg.VisionRange)
		if err := b.field.AddUnit(u); err != nil {
			return fmt.Errorf("failed to place %s unit: %w", f, err)
		}
	}
	return nil
}

// Field открывает поле боя для чтения (тесты, награды тренера).
func (b *Battle) Field() *domain.Battlefield { return b.field }

// Turn возвращает номер текущего хода.
func (b *Battle) Turn() int { return b.turn }

// Outcome возвращает итог боя (OutcomeInProgress, пока бой идет).
func (b *Battle) Outcome() domain.Outcome { return b.outcome }

// Run крутит бой до развязки и возвращает итог. Ошибку отдает только
// сломавшийся Decider. Все прочие неприятности - заблокированный шаг,
// атака в пустоту, действие вне словаря - деградируют в ожидание и бой
// продолжают; нарушения словаря при этом попадают в поток событий и в
// счетчик итога.
func (b *Battle) Run() (*api.BattleResult, error) {
	b.log.WithFields(logrus.Fields{
		"knights": b.field.FactionCount(domain.FactionKnights),
		"goblins": b.field.FactionCount(domain.FactionGoblins),
		"grail":   b.grail.active,
	}).Info("Battle started")

	b.emitStart(buildHeader(b))

	for b.outcome == domain.OutcomeInProgress {
		if err := b.playTurn(); err != nil {
			return nil, err
		}
	}

	result := buildResult(b)
	b.emitEnd(result)

	b.log.WithFields(logrus.Fields{
		"outcome": result.Outcome,
		"turns":   result.Turns,
	}).Info("Battle finished")

	return result, nil
}

// playTurn разыгрывает один полный ход: каждый живой юнит в порядке
// инициативы, затем шторм, затем проверка развязки.
func (b *Battle) playTurn() error {
	b.turn++
	b.turnEvents = b.turnEvents[:0]

	for _, u := range InitiativeOrder(b.field.Units) {
		// Порядок фиксируется в начале хода; погибшие до своей
		// очереди пропускаются.
		if !u.Alive {
			continue
		}
		if err := b.act(u); err != nil {
			return err
		}
	}

	b.storm.advance(b.turn)
	stormEvents := b.storm.apply(b.field, b.turn)
	b.turnEvents = append(b.turnEvents, stormEvents...)
	for _, ev := range stormEvents {
		if ev.Type != domain.EventDeath {
			continue
		}
		if victim := b.field.Unit(ev.Actor); victim != nil {
			if drop, ok := b.grail.dropOnDeath(victim, b.turn); ok {
				b.turnEvents = append(b.turnEvents, drop)
			}
		}
	}

	b.field.RemoveDead()
	b.resolveOutcome()
	b.emitTurn(buildTurnFrame(b))
	return nil
}

// act дает юниту увидеть мир, принять решение и исполнить его.
// Зрение пересчитывается перед каждым решением: юнит реагирует на
// ходы, сделанные раньше него в этом же ходу.
func (b *Battle) act(u *domain.Unit) error {
	snaps := systems.ComputeAllSnapshots(b.field)
	nets := systems.ResolveNetworks(b.field, snaps)
	snap, net := snaps[u.ID], nets[u.ID]

	if discovered := systems.MergeMemory(b.field, u, net, b.turn); discovered > 0 {
		b.turnEvents = append(b.turnEvents, domain.Event{
			Turn:  b.turn,
			Type:  domain.EventExplore,
			Actor: u.ID,
			Value: discovered,
			Pos:   u.Pos,
		})
	}

	pv := pressureView(b.storm, b.grail, b.field, b.turn)
	view := &TurnView{
		Turn:     b.turn,
		Field:    b.field,
		Snapshot: snap,
		Network:  net,
		Obs:      buildObservation(b.field, u, snap, net, pv, b.turn, b.passableTotal),
		Pressure: pv,
	}

	action, err := b.deciders[u.Faction].Decide(view, u)
	if err != nil {
		return fmt.Errorf("failed to decide for unit %d: %w", u.ID, err)
	}

	// Действие вне словаря - ошибка интеграции политики, но бой она
	// не валит: юнит принудительно ждет, нарушение уходит в поток
	// событий и в счетчик итога.
	if !action.IsValid() {
		b.violations++
		b.turnEvents = append(b.turnEvents, domain.Event{
			Turn:  b.turn,
			Type:  domain.EventContractViolation,
			Actor: u.ID,
			Value: int(action),
			Pos:   u.Pos,
		})
		b.log.WithFields(logrus.Fields{
			"unit_id": u.ID,
			"turn":    b.turn,
			"action":  uint8(action),
		}).Warn("Action outside the vocabulary, degraded to hold")
		action = domain.ActionHold
	}

	if u.Faction == domain.FactionGoblins {
		b.emitDecision(buildDecision(b.turn, u.ID, view.Obs, action))
	}

	b.execute(u, action, view)
	return nil
}

// execute применяет действие из словаря. Невыполнимое действие
// деградирует в ожидание, а не валит бой: политика имеет право
// ошибаться тактически, но не синтаксически.
func (b *Battle) execute(u *domain.Unit, action domain.ActionType, view *TurnView) {
	switch {
	case action.IsMove():
		dir, ok := action.MoveDirection()
		if !ok {
			return
		}
		to := u.Pos.Step(dir)
		if b.field.MoveUnit(u, to) != nil {
			return
		}
		if ev, picked := b.grail.tryPickup(u, b.turn); picked {
			b.turnEvents = append(b.turnEvents, ev)
		}

	case action == domain.ActionAttack:
		b.executeAttack(u)

	case action == domain.ActionRetreat:
		b.executeRetreat(u, view)
	}
	// ActionHold - осознанное бездействие.
}

// executeAttack бьет соседнего врага с наименьшим здоровьем
// (при равенстве - с меньшим ID, чтобы бой оставался воспроизводимым).
func (b *Battle) executeAttack(u *domain.Unit) {
	var target *domain.Unit
	for _, e := range b.field.AdjacentEnemies(u) {
		if target == nil || e.HP < target.HP || (e.HP == target.HP && e.ID < target.ID) {
			target = e
		}
	}
	if target == nil {
		return
	}

	u.FaceToward(target.Pos)
	actual := target.TakeDamage(u.RollDamage(b.rng))
	b.turnEvents = append(b.turnEvents, domain.Event{
		Turn:   b.turn,
		Type:   domain.EventDamage,
		Actor:  u.ID,
		Target: target.ID,
		Value:  actual,
		Pos:    target.Pos,
	})

	if !target.Alive {
		b.field.ReleaseCell(target)
		b.turnEvents = append(b.turnEvents,
			domain.Event{Turn: b.turn, Type: domain.EventKill, Actor: u.ID, Target: target.ID, Pos: target.Pos},
			domain.Event{Turn: b.turn, Type: domain.EventDeath, Actor: target.ID, Pos: target.Pos},
		)
		if drop, ok := b.grail.dropOnDeath(target, b.turn); ok {
			b.turnEvents = append(b.turnEvents, drop)
		}
	}
}

// executeRetreat - шаг к ближайшему видимому союзнику; если союзников
// не видно, шаг прочь от ближайшего известного врага.
func (b *Battle) executeRetreat(u *domain.Unit, view *TurnView) {
	known := systems.KnownTiles(u, view.Snapshot)

	if ally := nearestUnit(b.field, u, view.Snapshot.Allies); ally != nil {
		if step, ok := systems.NextStep(b.field, u, known, ally.Pos); ok {
			if b.field.MoveUnit(u, step) == nil {
				return
			}
		}
	}

	if enemy := nearestUnit(b.field, u, view.Network.Enemies); enemy != nil {
		to := u.Pos.Shift(sign(u.Pos.X-enemy.Pos.X), sign(u.Pos.Y-enemy.Pos.Y))
		if b.field.MoveUnit(u, to) == nil {
			return
		}
	}
	// Отступать некуда - стоим.
}

// resolveOutcome проверяет условия развязки в конце хода. Эвакуация
// грааля старше прочих условий.
func (b *Battle) resolveOutcome() {
	if carrier, ok := b.grail.extracted(b.field); ok {
		b.turnEvents = append(b.turnEvents, domain.Event{
			Turn:  b.turn,
			Type:  domain.EventExtraction,
			Actor: carrier.ID,
			Pos:   carrier.Pos,
		})
		b.outcome = domain.OutcomeKnightsWin
		return
	}

	knights := b.field.FactionCount(domain.FactionKnights)
	goblins := b.field.FactionCount(domain.FactionGoblins)

	switch {
	case knights == 0 && goblins == 0:
		b.outcome = domain.OutcomeStalemate
	case goblins == 0:
		b.outcome = domain.OutcomeKnightsWin
	case knights == 0:
		b.outcome = domain.OutcomeGoblinsWin
	case b.turn >= b.cfg.MaxTurns:
		// Таймаут: побеждает фракция с большим числом выживших.
		switch {
		case knights > goblins:
			b.outcome = domain.OutcomeKnightsWin
		case goblins > knights:
			b.outcome = domain.OutcomeGoblinsWin
		default:
			b.outcome = domain.OutcomeStalemate
		}
	}
}

// nearestUnit выбирает ближайшего живого юнита из множества ID
// (при равных дистанциях - меньший ID).
func nearestUnit(field *domain.Battlefield, u *domain.Unit, ids map[int]bool) *domain.Unit {
	var best *domain.Unit
	bestDist := 0.0
	for _, cand := range sortedUnits(field, ids) {
		d := u.Pos.DistanceTo(cand.Pos)
		if best == nil || d < bestDist {
			best = cand
			bestDist = d
		}
	}
	return best
}

// intInRange - равномерное целое из [min, max].
func intInRange(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
