package engine

import (
	"github.com/mikkokallio/goblin-tactics/internal/domain"
	"github.com/mikkokallio/goblin-tactics/internal/systems"
)

// TurnView - всё, что юнит знает в момент своего хода. Снимок зрения,
// сеть знаний и наблюдение пересчитаны непосредственно перед решением,
// поэтому отражают позиции после ходов более быстрых юнитов.
type TurnView struct {
	Turn  int
	Field *domain.Battlefield

	// Snapshot - собственное зрение юнита.
	Snapshot *systems.Snapshot
	// Network - зрение, объединённое по цепочке взаимно видящих союзников.
	Network *systems.Network

	// Obs - вектор признаков для обучаемых политик.
	Obs *Observation

	// Pressure - состояние шторма и грааля на начало решения.
	Pressure PressureView
}

// PressureView - открытая часть состояния внешнего давления.
type PressureView struct {
	StormEnabled bool
	// StormShrinking = true, когда зона уже начала сжиматься.
	StormShrinking bool
	SafeCenter     domain.Position
	SafeRadius     float64

	GrailActive bool
	// GrailPos - фактическое положение артефакта (с носильщиком, если несут).
	GrailPos domain.Position
	// GrailCarrier - ID носильщика, -1 если артефакт лежит на земле.
	GrailCarrier int
}

// InSafeZone сообщает, накрывает ли безопасная зона клетку.
// Пока шторм не активен, безопасна вся карта.
func (p PressureView) InSafeZone(pos domain.Position) bool {
	if !p.StormEnabled {
		return true
	}
	return pos.DistanceTo(p.SafeCenter) <= p.SafeRadius
}

// Decider выбирает действие юнита. Скриптовые политики читают поле боя
// и память юнита напрямую, обучаемые - только вектор Obs. Ошибка
// прерывает бой: решатель обязан вернуть действие из словаря, даже
// если это просто HOLD.
type Decider interface {
	Decide(view *TurnView, u *domain.Unit) (domain.ActionType, error)
}

// DeciderFunc позволяет использовать функцию как Decider.
type DeciderFunc func(view *TurnView, u *domain.Unit) (domain.ActionType, error)

func (f DeciderFunc) Decide(view *TurnView, u *domain.Unit) (domain.ActionType, error) {
	return f(view, u)
}
