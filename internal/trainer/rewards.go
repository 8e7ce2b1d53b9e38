package trainer

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/sirupsen/logrus"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
	"github.com/mikkokallio/goblin-tactics/pkg/logger"
)

// decisionContext - снимок всего, что политика знала в момент решения.
// Награда закрывается позже (следующим решением юнита либо его
// смертью), и к тому времени мир уже другой: всё, что нужно посчитать
// "на до-ходовом" состоянии, фиксируется здесь.
type decisionContext struct {
	state  []float64
	action domain.ActionType
	turn   int

	pos domain.Position

	// Ближайший враг в собственном зрении (позиция заморожена на
	// момент решения - по ней оценивается сближение).
	sawEnemy        bool
	nearestEnemyPos domain.Position

	// Ближайший враг, известный только через сеть союзников.
	netEnemy        bool
	nearestNetEnemy domain.Position

	alliesWithin3 int
	// crowded - видимые союзники в радиусе 5 (скученность).
	crowded int
	// packed - есть союзник в радиусе 4 (стайный бонус в бою).
	packed bool
	// spreadGain - выбранный шаг уводит в менее скученное место.
	spreadGain bool
	// newTile - шаг ведет на клетку, которой нет в памяти юнита.
	newTile bool

	grailMode bool
}

// outcomeFacts - что произошло с юнитом между решением и закрытием
// перехода: суммарный нанесенный урон, убийства, собственная смерть
// и состояние на момент закрытия.
type outcomeFacts struct {
	damage int
	kills  int
	died   bool

	// hasEnd = false, когда переход закрывается без следующего
	// наблюдения (смерть или конец боя).
	hasEnd bool
	endPos domain.Position
	// endNearestEnemy - дистанция до ближайшего видимого врага на
	// момент закрытия, -1 если врагов не видно.
	endNearestEnemy float64
	endInSafeZone   bool
	oscillated      bool
}

// computeReward - встроенная формула награды. Смерть перекрывает всё;
// дальше режимы расходятся: стандартный учит агрессии и дисциплине
// строя, грааль - обороне, разведке и рассредоточению.
func computeReward(ctx *decisionContext, facts *outcomeFacts) float64 {
	if facts.died {
		return -100
	}
	if ctx.grailMode {
		return grailReward(ctx, facts)
	}
	return standardReward(ctx, facts)
}

// standardReward - режим на уничтожение.
func standardReward(ctx *decisionContext, facts *outcomeFacts) float64 {
	// Тик выживания.
	r := 0.5

	r += float64(facts.damage) * 2
	if facts.kills > 0 {
		// Убийство ценнее, когда рядом свои: стая добивает надежнее.
		r += float64(facts.kills) * (50 + 20*float64(ctx.alliesWithin3))
	}

	// Дистанционная поддержка: держись близко к врагу, не болтайся
	// на отшибе.
	if facts.hasEnd && facts.endNearestEnemy >= 0 {
		switch {
		case facts.endNearestEnemy <= 1:
			r += 5
		case facts.endNearestEnemy <= 2:
			r += 3
		case facts.endNearestEnemy <= 4:
			r += 1.5
		case facts.endNearestEnemy <= 7:
			r += 0.5
		default:
			r -= 2
		}
	}

	if facts.hasEnd && !facts.endInSafeZone {
		r -= 10
	}

	if ctx.action == domain.ActionHold {
		r -= 2
	}
	if facts.oscillated {
		r -= 5
	}

	return r
}

// grailReward - режим обороны артефакта.
func grailReward(ctx *decisionContext, facts *outcomeFacts) float64 {
	var r float64

	r += float64(facts.damage) * 10
	r += float64(facts.kills) * 100

	if ctx.action.IsMove() && ctx.newTile {
		r += 8
	}

	// Толпа гоблинов в одном месте - незащищенные коридоры в другом.
	if !ctx.sawEnemy {
		switch {
		case ctx.crowded >= 5:
			r -= 15
		case ctx.crowded >= 3:
			r -= 8
		}
	}

	if ctx.action.IsMove() {
		switch {
		case ctx.sawEnemy:
			if facts.hasEnd && closedIn(ctx.pos, facts.endPos, ctx.nearestEnemyPos) {
				r += 12
			}
			if ctx.packed {
				r += 5
			}
		case ctx.netEnemy:
			// Сам врага не вижу, но сеть видит: подтягивайся к бою.
			if facts.hasEnd && closedIn(ctx.pos, facts.endPos, ctx.nearestNetEnemy) {
				r += 10
			}
		default:
			if ctx.spreadGain {
				r += 6
			}
		}
	}

	return r
}

// closedIn сообщает, сократил ли ход дистанцию до цели
// (позиция цели заморожена на момент решения).
func closedIn(from, to, target domain.Position) bool {
	return to.DistanceTo(target) < from.DistanceTo(target)
}

// rewardEngine выбирает между встроенной формулой и CEL-выражением из
// конфигурации. Выражение компилируется один раз; ошибка вычисления
// на конкретном переходе не валит обучение, а откатывает к встроенной
// формуле.
type rewardEngine struct {
	prog cel.Program
	log  *logrus.Entry
}

// newRewardEngine компилирует выражение награды. Пустая строка -
// встроенная формула. Ошибка компиляции - ошибка конфигурации,
// обучение с ней не стартует.
func newRewardEngine(expr string) (*rewardEngine, error) {
	re := &rewardEngine{
		log: logger.Log.WithFields(logrus.Fields{"component": "trainer"}),
	}
	if expr == "" {
		return re, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("damage", cel.IntType),
		cel.Variable("kills", cel.IntType),
		cel.Variable("died", cel.BoolType),
		cel.Variable("moved", cel.BoolType),
		cel.Variable("held", cel.BoolType),
		cel.Variable("new_tile", cel.BoolType),
		cel.Variable("allies_within_3", cel.IntType),
		cel.Variable("allies_within_5", cel.IntType),
		cel.Variable("enemy_visible", cel.BoolType),
		cel.Variable("nearest_enemy", cel.DoubleType),
		cel.Variable("in_safe_zone", cel.BoolType),
		cel.Variable("oscillated", cel.BoolType),
		cel.Variable("turn", cel.IntType),
		cel.Variable("grail_mode", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build reward environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("failed to compile reward_expr: %w", iss.Err())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build reward program: %w", err)
	}

	re.prog = prog
	return re, nil
}

// compute считает награду перехода.
func (re *rewardEngine) compute(ctx *decisionContext, facts *outcomeFacts) float64 {
	if re.prog == nil {
		return computeReward(ctx, facts)
	}

	nearest := -1.0
	if facts.hasEnd && facts.endNearestEnemy >= 0 {
		nearest = facts.endNearestEnemy
	}

	out, _, err := re.prog.Eval(map[string]any{
		"action":          ctx.action.String(),
		"damage":          facts.damage,
		"kills":           facts.kills,
		"died":            facts.died,
		"moved":           ctx.action.IsMove(),
		"held":            ctx.action == domain.ActionHold,
		"new_tile":        ctx.newTile,
		"allies_within_3": ctx.alliesWithin3,
		"allies_within_5": ctx.crowded,
		"enemy_visible":   ctx.sawEnemy,
		"nearest_enemy":   nearest,
		"in_safe_zone":    facts.hasEnd && facts.endInSafeZone,
		"oscillated":      facts.oscillated,
		"turn":            ctx.turn,
		"grail_mode":      ctx.grailMode,
	})
	if err != nil {
		re.log.WithError(err).Warn("Reward expression failed, falling back to built-in formula")
		return computeReward(ctx, facts)
	}

	switch v := out.Value().(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	default:
		re.log.WithFields(logrus.Fields{"type": fmt.Sprintf("%T", v)}).
			Warn("Reward expression returned non-numeric value, falling back to built-in formula")
		return computeReward(ctx, facts)
	}
}
