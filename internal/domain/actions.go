package domain

import "strings"

// ActionType - действие юнита за один ход. Словарь фиксированный:
// восемь направлений движения, атака, ожидание и отход к союзникам.
// Обучаемая политика выбирает действие по числовому значению, поэтому
// порядок констант менять нельзя без смены версии схемы наблюдений.
type ActionType uint8

const (
	ActionMoveNorth ActionType = iota
	ActionMoveNorthEast
	ActionMoveEast
	ActionMoveSouthEast
	ActionMoveSouth
	ActionMoveSouthWest
	ActionMoveWest
	ActionMoveNorthWest
	ActionAttack
	ActionHold
	ActionRetreat
)

// NumActions - размер словаря действий (он же выход Q-сети).
const NumActions = 11

// ActionInvalid - значение вне словаря. Запрос такого действия -
// нарушение контракта политики, а не мягкий отказ.
const ActionInvalid ActionType = 255

// Маппинг для конвертации строк конфигов/JSON -> Domain
var actionStringToCmd = map[string]ActionType{
	"MOVE_N":  ActionMoveNorth,
	"MOVE_NE": ActionMoveNorthEast,
	"MOVE_E":  ActionMoveEast,
	"MOVE_SE": ActionMoveSouthEast,
	"MOVE_S":  ActionMoveSouth,
	"MOVE_SW": ActionMoveSouthWest,
	"MOVE_W":  ActionMoveWest,
	"MOVE_NW": ActionMoveNorthWest,
	"ATTACK":  ActionAttack,
	"HOLD":    ActionHold,
	"RETREAT": ActionRetreat,
}

// Маппинг для логов Domain -> String
var actionCmdToString = map[ActionType]string{
	ActionMoveNorth:     "MOVE_N",
	ActionMoveNorthEast: "MOVE_NE",
	ActionMoveEast:      "MOVE_E",
	ActionMoveSouthEast: "MOVE_SE",
	ActionMoveSouth:     "MOVE_S",
	ActionMoveSouthWest: "MOVE_SW",
	ActionMoveWest:      "MOVE_W",
	ActionMoveNorthWest: "MOVE_NW",
	ActionAttack:        "ATTACK",
	ActionHold:          "HOLD",
	ActionRetreat:       "RETREAT",
}

// ParseAction конвертирует строку в ActionType
func ParseAction(s string) ActionType {
	// Делаем нечувствительным к регистру для надежности
	upper := strings.ToUpper(strings.TrimSpace(s))
	if val, ok := actionStringToCmd[upper]; ok {
		return val
	}
	return ActionInvalid
}

// String реализует интерфейс Stringer (для fmt.Printf)
func (a ActionType) String() string {
	if val, ok := actionCmdToString[a]; ok {
		return val
	}
	return "INVALID"
}

// IsValid проверяет, что значение входит в словарь действий.
func (a ActionType) IsValid() bool {
	return a < NumActions
}

// IsMove возвращает true для восьми действий движения.
func (a ActionType) IsMove() bool {
	return a <= ActionMoveNorthWest
}

// MoveDirection возвращает направление для действия движения.
// Для остальных действий второе значение false.
func (a ActionType) MoveDirection() (Direction, bool) {
	if !a.IsMove() {
		return DirNorth, false
	}
	return Direction(a), true
}

// MoveAction возвращает действие движения в указанном направлении.
func MoveAction(d Direction) ActionType {
	return ActionType(d % NumDirections)
}
