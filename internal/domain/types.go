package domain

// Faction - сторона конфликта. Принадлежность юнита не меняется за время боя.
type Faction uint8

const (
	// FactionKnights - малочисленная сильная фракция (скриптовый AI).
	FactionKnights Faction = iota
	// FactionGoblins - многочисленная слабая фракция (обучаемая политика).
	FactionGoblins
)

// Opponent возвращает противоположную фракцию.
func (f Faction) Opponent() Faction {
	if f == FactionKnights {
		return FactionGoblins
	}
	return FactionKnights
}

// String реализует интерфейс Stringer (для логов и DTO)
func (f Faction) String() string {
	switch f {
	case FactionKnights:
		return "KNIGHTS"
	case FactionGoblins:
		return "GOBLINS"
	}
	return "UNKNOWN"
}

// Outcome - итог боя. Пока бой идет, значение OutcomeInProgress.
type Outcome uint8

const (
	OutcomeInProgress Outcome = iota
	OutcomeKnightsWin
	OutcomeGoblinsWin
	// OutcomeStalemate - таймаут при равном числе выживших.
	OutcomeStalemate
)

// String реализует интерфейс Stringer (для fmt.Printf)
func (o Outcome) String() string {
	switch o {
	case OutcomeInProgress:
		return "IN_PROGRESS"
	case OutcomeKnightsWin:
		return "KNIGHTS_WIN"
	case OutcomeGoblinsWin:
		return "GOBLINS_WIN"
	case OutcomeStalemate:
		return "STALEMATE"
	}
	return "UNKNOWN"
}

// Winner возвращает победившую фракцию. Второе значение false для
// ничьей и незавершенного боя.
func (o Outcome) Winner() (Faction, bool) {
	switch o {
	case OutcomeKnightsWin:
		return FactionKnights, true
	case OutcomeGoblinsWin:
		return FactionGoblins, true
	}
	return 0, false
}

// Direction - одно из восьми направлений. 0=N, далее по часовой стрелке до 7=NW.
type Direction uint8

const (
	DirNorth Direction = iota
	DirNorthEast
	DirEast
	DirSouthEast
	DirSouth
	DirSouthWest
	DirWest
	DirNorthWest
)

// NumDirections - размер розы направлений (для нормализации и перебора).
const NumDirections = 8

// deltas в том же порядке, что и константы направлений.
// Экранные координаты: Y растет вниз, поэтому север это dy=-1.
var directionDeltas = [NumDirections][2]int{
	{0, -1},  // N
	{1, -1},  // NE
	{1, 0},   // E
	{1, 1},   // SE
	{0, 1},   // S
	{-1, 1},  // SW
	{-1, 0},  // W
	{-1, -1}, // NW
}

var directionNames = [NumDirections]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Delta возвращает смещение (dx, dy) для направления.
func (d Direction) Delta() (int, int) {
	dd := directionDeltas[d%NumDirections]
	return dd[0], dd[1]
}

// String реализует интерфейс Stringer
func (d Direction) String() string {
	return directionNames[d%NumDirections]
}

// DirectionFromDelta определяет направление по знакам смещения.
// Для (0,0) возвращает DirNorth и false.
func DirectionFromDelta(dx, dy int) (Direction, bool) {
	if dx == 0 && dy == 0 {
		return DirNorth, false
	}
	switch {
	case dy < 0 && dx > 0:
		return DirNorthEast, true
	case dy < 0 && dx < 0:
		return DirNorthWest, true
	case dy < 0:
		return DirNorth, true
	case dy > 0 && dx > 0:
		return DirSouthEast, true
	case dy > 0 && dx < 0:
		return DirSouthWest, true
	case dy > 0:
		return DirSouth, true
	case dx > 0:
		return DirEast, true
	}
	return DirWest, true
}

// Arc - сектор обстрела относительно взгляда защитника.
type Arc uint8

const (
	ArcFront Arc = iota
	ArcSide
	ArcRear
)

// String реализует интерфейс Stringer
func (a Arc) String() string {
	switch a {
	case ArcFront:
		return "front"
	case ArcSide:
		return "side"
	case ArcRear:
		return "rear"
	}
	return "unknown"
}
