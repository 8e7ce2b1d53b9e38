package trainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
)

func TestRewardDeathOverridesEverything(t *testing.T) {
	// Даже идеальный ход не спасает от штрафа за смерть.
	ctx := &decisionContext{
		action:        domain.ActionAttack,
		alliesWithin3: 4,
	}
	facts := &outcomeFacts{damage: 9, kills: 2, died: true}

	assert.Equal(t, -100.0, computeReward(ctx, facts))

	ctx.grailMode = true
	assert.Equal(t, -100.0, computeReward(ctx, facts))
}

func TestStandardRewardCombat(t *testing.T) {
	// 0.5 тик + 3 урона*2 + убийство (50 + 20*2 союзника) + дистанция <=1.
	ctx := &decisionContext{
		action:        domain.ActionAttack,
		alliesWithin3: 2,
	}
	facts := &outcomeFacts{
		damage:          3,
		kills:           1,
		hasEnd:          true,
		endNearestEnemy: 1,
		endInSafeZone:   true,
	}

	assert.InDelta(t, 0.5+6+90+5, computeReward(ctx, facts), 1e-9)
}

func TestStandardRewardProximityBands(t *testing.T) {
	tests := []struct {
		name    string
		nearest float64
		want    float64
	}{
		{"вплотную", 1, 0.5 + 5},
		{"рядом", 2, 0.5 + 3},
		{"близко", 4, 0.5 + 1.5},
		{"в пределах вылазки", 7, 0.5 + 0.5},
		{"на отшибе", 8, 0.5 - 2},
		{"врагов не видно", -1, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &decisionContext{action: domain.ActionMoveNorth}
			facts := &outcomeFacts{
				hasEnd:          true,
				endNearestEnemy: tt.nearest,
				endInSafeZone:   true,
			}
			assert.InDelta(t, tt.want, computeReward(ctx, facts), 1e-9)
		})
	}
}

func TestStandardRewardPenalties(t *testing.T) {
	// Шторм: -10 за клетку вне безопасной зоны.
	ctx := &decisionContext{action: domain.ActionMoveEast}
	facts := &outcomeFacts{hasEnd: true, endNearestEnemy: -1, endInSafeZone: false}
	assert.InDelta(t, 0.5-10, computeReward(ctx, facts), 1e-9)

	// Пассивность: -2 за HOLD.
	ctx = &decisionContext{action: domain.ActionHold}
	facts = &outcomeFacts{hasEnd: true, endNearestEnemy: -1, endInSafeZone: true}
	assert.InDelta(t, 0.5-2, computeReward(ctx, facts), 1e-9)

	// Топтание на месте: -5 за осцилляцию.
	ctx = &decisionContext{action: domain.ActionMoveWest}
	facts = &outcomeFacts{
		hasEnd:          true,
		endNearestEnemy: -1,
		endInSafeZone:   true,
		oscillated:      true,
	}
	assert.InDelta(t, 0.5-5, computeReward(ctx, facts), 1e-9)
}

func TestGrailRewardCombat(t *testing.T) {
	// Урон и убийства в режиме грааля ценятся дороже.
	ctx := &decisionContext{action: domain.ActionAttack, grailMode: true}
	facts := &outcomeFacts{damage: 2, kills: 1}
	assert.InDelta(t, 20+100, computeReward(ctx, facts), 1e-9)
}

func TestGrailRewardExplore(t *testing.T) {
	// Шаг на неизвестную клетку поощряется.
	ctx := &decisionContext{
		action:    domain.ActionMoveNorth,
		newTile:   true,
		grailMode: true,
	}
	assert.InDelta(t, 8.0, computeReward(ctx, &outcomeFacts{}), 1e-9)

	// HOLD не разведка, даже если клетка перед носом неизвестна.
	ctx.action = domain.ActionHold
	assert.InDelta(t, 0.0, computeReward(ctx, &outcomeFacts{}), 1e-9)
}

func TestGrailRewardAntiCluster(t *testing.T) {
	tests := []struct {
		name    string
		crowded int
		want    float64
	}{
		{"толпа", 5, -15},
		{"кучкование", 3, -8},
		{"пара рядом допустима", 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &decisionContext{
				action:    domain.ActionHold,
				crowded:   tt.crowded,
				grailMode: true,
			}
			assert.InDelta(t, tt.want, computeReward(ctx, &outcomeFacts{}), 1e-9)
		})
	}

	// При видимом враге скученность не штрафуется: идет бой.
	ctx := &decisionContext{
		action:    domain.ActionHold,
		crowded:   5,
		sawEnemy:  true,
		grailMode: true,
	}
	assert.InDelta(t, 0.0, computeReward(ctx, &outcomeFacts{}), 1e-9)
}

func TestGrailRewardClosingOnVisibleEnemy(t *testing.T) {
	// Шаг с (5,5) на (6,5) сокращает дистанцию до врага на (9,5).
	ctx := &decisionContext{
		action:          domain.ActionMoveEast,
		pos:             domain.Position{X: 5, Y: 5},
		sawEnemy:        true,
		nearestEnemyPos: domain.Position{X: 9, Y: 5},
		packed:          true,
		grailMode:       true,
	}
	facts := &outcomeFacts{hasEnd: true, endPos: domain.Position{X: 6, Y: 5}}
	assert.InDelta(t, 12+5, computeReward(ctx, facts), 1e-9)

	// Шаг в сторону не считается сближением.
	facts.endPos = domain.Position{X: 5, Y: 5}
	assert.InDelta(t, 5.0, computeReward(ctx, facts), 1e-9)
}

func TestGrailRewardReinforceNetworkContact(t *testing.T) {
	// Сам врага не видит, но сеть видит: подход к чужому бою +10.
	ctx := &decisionContext{
		action:          domain.ActionMoveSouth,
		pos:             domain.Position{X: 3, Y: 3},
		netEnemy:        true,
		nearestNetEnemy: domain.Position{X: 3, Y: 9},
		grailMode:       true,
	}
	facts := &outcomeFacts{hasEnd: true, endPos: domain.Position{X: 3, Y: 4}}
	assert.InDelta(t, 10.0, computeReward(ctx, facts), 1e-9)
}

func TestGrailRewardSpread(t *testing.T) {
	// Врагов не знает никто: уход из скопления +6.
	ctx := &decisionContext{
		action:     domain.ActionMoveWest,
		spreadGain: true,
		grailMode:  true,
	}
	assert.InDelta(t, 6.0, computeReward(ctx, &outcomeFacts{hasEnd: true}), 1e-9)
}

func TestClosedIn(t *testing.T) {
	target := domain.Position{X: 10, Y: 10}
	from := domain.Position{X: 5, Y: 5}

	assert.True(t, closedIn(from, domain.Position{X: 6, Y: 6}, target))
	assert.False(t, closedIn(from, domain.Position{X: 4, Y: 4}, target))
	// Шаг по дуге с той же дистанцией - не сближение.
	assert.False(t, closedIn(from, from, target))
}

func TestRewardEngineEmptyExprUsesBuiltin(t *testing.T) {
	re, err := newRewardEngine("")
	require.NoError(t, err)

	ctx := &decisionContext{action: domain.ActionHold}
	facts := &outcomeFacts{hasEnd: true, endNearestEnemy: -1, endInSafeZone: true}
	assert.InDelta(t, computeReward(ctx, facts), re.compute(ctx, facts), 1e-9)
}

func TestRewardEngineCustomExpression(t *testing.T) {
	re, err := newRewardEngine(`double(damage) * 3.0 - (held ? 2.0 : 0.0)`)
	require.NoError(t, err)

	ctx := &decisionContext{action: domain.ActionHold}
	facts := &outcomeFacts{damage: 4}
	assert.InDelta(t, 10.0, re.compute(ctx, facts), 1e-9)

	ctx.action = domain.ActionAttack
	assert.InDelta(t, 12.0, re.compute(ctx, facts), 1e-9)
}

func TestRewardEngineIntegerResult(t *testing.T) {
	// Целочисленный результат выражения тоже принимается.
	re, err := newRewardEngine(`kills * 25`)
	require.NoError(t, err)

	got := re.compute(&decisionContext{action: domain.ActionAttack}, &outcomeFacts{kills: 2})
	assert.InDelta(t, 50.0, got, 1e-9)
}

func TestRewardEngineCompileError(t *testing.T) {
	_, err := newRewardEngine("nearest_enemy +")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile reward_expr")
}

func TestRewardEngineRuntimeErrorFallsBack(t *testing.T) {
	// Деление на ноль всплывает только при вычислении: движок должен
	// откатиться к встроенной формуле, а не уронить обучение.
	re, err := newRewardEngine(`100 / (damage - damage)`)
	require.NoError(t, err)

	ctx := &decisionContext{action: domain.ActionAttack}
	facts := &outcomeFacts{died: true}
	assert.Equal(t, -100.0, re.compute(ctx, facts))
}

func TestRewardEngineNonNumericFallsBack(t *testing.T) {
	re, err := newRewardEngine(`action`)
	require.NoError(t, err)

	ctx := &decisionContext{action: domain.ActionAttack}
	facts := &outcomeFacts{died: true}
	assert.Equal(t, -100.0, re.compute(ctx, facts))
}
