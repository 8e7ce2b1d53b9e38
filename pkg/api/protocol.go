package api

import (
	"encoding/json"
	"fmt"
)

// --- СЕРВЕР -> КЛИЕНТ ---

// Типы сообщений сервера.
const (
	MsgHeader = "HEADER"
	MsgTurn   = "TURN"
	MsgResult = "RESULT"
	MsgList   = "LIST"
	MsgInfo   = "INFO"
	MsgError  = "ERROR"
)

// ServerMessage - корневой объект всех сообщений сервер -> клиент.
// Каждое сообщение несёт один кадр трансляции боя либо служебный текст.
type ServerMessage struct {
	// Type определяет структуру Payload: HEADER, TURN, RESULT, INFO, ERROR.
	Type string `json:"type"`

	// Payload - JSON-объект, структура зависит от Type.
	Payload json.RawMessage `json:"payload"`
}

// NewServerMessage упаковывает полезную нагрузку в конверт.
func NewServerMessage(msgType string, payload interface{}) (ServerMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ServerMessage{}, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return ServerMessage{Type: msgType, Payload: raw}, nil
}

// InfoPayload - служебный текст (подтверждения, статус воспроизведения).
type InfoPayload struct {
	Text string `json:"text"`
}

// ErrorPayload - текст ошибки, после которой соединение остаётся живым.
type ErrorPayload struct {
	Text string `json:"text"`
}

// CellRef - координаты одной клетки.
type CellRef struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BattleHeader - первый кадр трансляции: карта, стартовый состав и
// параметры, без которых клиент не сможет отрисовать последующие ходы.
type BattleHeader struct {
	// SchemaVersion - версия схемы наблюдений, с которой записан бой.
	SchemaVersion int   `json:"schemaVersion"`
	Seed          int64 `json:"seed"`

	Width  int `json:"width"`
	Height int `json:"height"`

	// Map - ландшафт построчно: '#' стена, '.' пол, '~' завал.
	Map []string `json:"map"`

	Units []UnitView `json:"units"`

	MaxTurns     int  `json:"maxTurns"`
	StormEnabled bool `json:"stormEnabled"`
	GrailMode    bool `json:"grailMode"`

	// Grail и Extraction заполняются только в режиме грааля.
	Grail      *CellRef  `json:"grail,omitempty"`
	Extraction []CellRef `json:"extraction,omitempty"`
}

// UnitView - DTO юнита. Содержит всё для отрисовки и ничего лишнего:
// память и зрение юнита остаются на сервере.
type UnitView struct {
	ID      int    `json:"id"`
	Faction string `json:"faction"` // KNIGHTS, GOBLINS

	X int `json:"x"`
	Y int `json:"y"`

	HP    int `json:"hp"`
	MaxHP int `json:"maxHp"`

	// Facing - направление взгляда, 0-7 от севера по часовой.
	Facing int  `json:"facing"`
	Alive  bool `json:"alive"`

	CarryingGrail bool `json:"carryingGrail,omitempty"`
}

// EventView - DTO события боя.
type EventView struct {
	Type   string `json:"type"`
	Actor  int    `json:"actor"`
	Target int    `json:"target,omitempty"`
	Value  int    `json:"value,omitempty"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// StormView - состояние безопасной зоны на конец хода.
type StormView struct {
	// Shrinking = true после стартового хода шторма.
	Shrinking bool    `json:"shrinking"`
	Radius    float64 `json:"radius"`
	CenterX   int     `json:"centerX"`
	CenterY   int     `json:"centerY"`
}

// GrailView - положение артефакта на конец хода.
type GrailView struct {
	X int `json:"x"`
	Y int `json:"y"`
	// CarrierID - ID несущего юнита, -1 если артефакт лежит на земле.
	CarrierID int `json:"carrierId"`
}

// TurnFrame - снимок боя после одного полного хода.
type TurnFrame struct {
	Turn   int         `json:"turn"`
	Units  []UnitView  `json:"units"`
	Events []EventView `json:"events,omitempty"`

	Storm *StormView `json:"storm,omitempty"`
	Grail *GrailView `json:"grail,omitempty"`
}

// DecisionView - одно решение обучаемой политики: вектор признаков
// и выбранное действие. Награда здесь не хранится - её считает тренер.
type DecisionView struct {
	Turn          int       `json:"turn"`
	UnitID        int       `json:"unitId"`
	SchemaVersion int       `json:"schemaVersion"`
	Features      []float64 `json:"features"`
	Action        uint8     `json:"action"`
	ActionName    string    `json:"actionName"`
}

// BattleResult - итог боя.
type BattleResult struct {
	// Outcome: KNIGHTS_WIN, GOBLINS_WIN, STALEMATE.
	Outcome string `json:"outcome"`
	// Winner пуст при ничьей.
	Winner string `json:"winner,omitempty"`

	Turns        int   `json:"turns"`
	KnightsAlive int   `json:"knightsAlive"`
	GoblinsAlive int   `json:"goblinsAlive"`
	Seed         int64 `json:"seed"`

	// ContractViolations - число действий вне словаря, деградировавших
	// в ожидание за время боя.
	ContractViolations int `json:"contractViolations,omitempty"`
}

// --- КЛИЕНТ -> СЕРВЕР ---

// Действия клиента-зрителя.
const (
	ActionWatch  = "WATCH"
	ActionPause  = "PAUSE"
	ActionResume = "RESUME"
	ActionStep   = "STEP"
	ActionSeek   = "SEEK"
	ActionList   = "LIST"
)

// ClientCommand - корневой объект всех сообщений от зрителя к серверу.
type ClientCommand struct {
	// Action - название команды воспроизведения.
	Action string `json:"action"`

	// Payload - JSON-объект с данными команды. Структура зависит от Action.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Payloads ---

// WatchPayload выбирает запись для просмотра.
type WatchPayload struct {
	// Battle - имя файла записи. Пустая строка означает самую свежую.
	Battle string `json:"battle,omitempty"`
}

// StepPayload продвигает остановленное воспроизведение вперёд.
type StepPayload struct {
	// Turns - на сколько ходов шагнуть. Ноль трактуется как один.
	Turns int `json:"turns,omitempty"`
}

// SeekPayload перематывает воспроизведение на указанный ход.
type SeekPayload struct {
	Turn int `json:"turn"`
}

// ListPayload - содержимое каталога записей в ответ на LIST.
type ListPayload struct {
	Battles []string `json:"battles"`
}
