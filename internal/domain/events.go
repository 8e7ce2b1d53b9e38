package domain

import "strings"

// EventType - тип события боя. События - единственный канал, по которому
// движок сообщает наружу о значимых для наград фактах: сам движок
// никаких наград не считает.
type EventType uint8

const (
	EventUnknown EventType = iota
	// EventDamage - юнит получил урон от атаки.
	EventDamage
	// EventKill - атакующий добил цель этим ударом.
	EventKill
	// EventDeath - юнит погиб (от атаки или шторма).
	EventDeath
	// EventStorm - урон за пределами безопасной зоны в конце хода.
	EventStorm
	// EventExplore - в память юнита попали новые клетки.
	EventExplore
	// EventPickup - юнит подобрал артефакт.
	EventPickup
	// EventDrop - артефакт выпал на клетке смерти носильщика.
	EventDrop
	// EventExtraction - носильщик достиг зоны эвакуации (немедленная победа).
	EventExtraction
	// EventContractViolation - политика запросила действие вне словаря.
	EventContractViolation
)

// Маппинг для конвертации строк -> Domain
var eventStringToCmd = map[string]EventType{
	"DAMAGE":             EventDamage,
	"KILL":               EventKill,
	"DEATH":              EventDeath,
	"STORM":              EventStorm,
	"EXPLORE":            EventExplore,
	"PICKUP":             EventPickup,
	"DROP":               EventDrop,
	"EXTRACTION":         EventExtraction,
	"CONTRACT_VIOLATION": EventContractViolation,
}

// Маппинг для логов Domain -> String
var eventCmdToString = map[EventType]string{
	EventDamage:            "DAMAGE",
	EventKill:              "KILL",
	EventDeath:             "DEATH",
	EventStorm:             "STORM",
	EventExplore:           "EXPLORE",
	EventPickup:            "PICKUP",
	EventDrop:              "DROP",
	EventExtraction:        "EXTRACTION",
	EventContractViolation: "CONTRACT_VIOLATION",
}

// ParseEvent конвертирует строку в EventType
func ParseEvent(s string) EventType {
	upper := strings.ToUpper(strings.TrimSpace(s))
	if val, ok := eventStringToCmd[upper]; ok {
		return val
	}
	return EventUnknown
}

// String реализует интерфейс Stringer (для fmt.Printf)
func (e EventType) String() string {
	if val, ok := eventCmdToString[e]; ok {
		return val
	}
	return "UNKNOWN"
}

// Event - одно событие боя. Actor - кто вызвал событие, Target - над кем
// оно произошло (для урона: Actor бьет, Target получает). Value зависит
// от типа: снятое здоровье для урона и шторма, число новых клеток для
// разведки, сырое значение действия для нарушения контракта.
type Event struct {
	Turn   int       `json:"turn"`
	Type   EventType `json:"type"`
	Actor  int       `json:"actor"`
	Target int       `json:"target,omitempty"`
	Value  int       `json:"value,omitempty"`
	Pos    Position  `json:"pos"`
}
