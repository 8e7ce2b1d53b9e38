package domain

import "math/rand"

// Unit - боевая единица. Принадлежит одному бою; фракция и ID неизменны,
// здоровье меняется только через TakeDamage.
type Unit struct {
	ID      int     `json:"id"`
	Faction Faction `json:"faction"`

	Pos Position `json:"pos"`

	HP        int `json:"hp"`
	MaxHP     int `json:"maxHp"`
	DamageMin int `json:"damageMin"`
	DamageMax int `json:"damageMax"`

	// Speed - ключ инициативы. Большее значение ходит раньше.
	Speed int `json:"speed"`

	VisionRadius int       `json:"visionRadius"`
	Facing       Direction `json:"facing"`

	Alive bool `json:"alive"`

	// Memory - персистентная память юнита (туман войны и последние
	// известные позиции врагов). Сбрасывается только со смертью.
	Memory *UnitMemory `json:"-"`
}

// NewUnit создает живого юнита с полным здоровьем и пустой памятью.
func NewUnit(id int, faction Faction, pos Position, hp, dmgMin, dmgMax, speed, visionRadius int) *Unit {
	return &Unit{
		ID:           id,
		Faction:      faction,
		Pos:          pos,
		HP:           hp,
		MaxHP:        hp,
		DamageMin:    dmgMin,
		DamageMax:    dmgMax,
		Speed:        speed,
		VisionRadius: visionRadius,
		Alive:        true,
		Memory:       NewUnitMemory(),
	}
}

// TakeDamage наносит урон и возвращает фактически снятое здоровье
// (для журнала событий и наград). Здоровье не уходит ниже нуля.
func (u *Unit) TakeDamage(amount int) int {
	if !u.Alive || amount <= 0 {
		return 0
	}
	actual := amount
	if actual > u.HP {
		actual = u.HP
	}
	u.HP -= actual
	if u.HP <= 0 {
		u.HP = 0
		u.Alive = false
	}
	return actual
}

// RollDamage бросает урон в диапазоне [DamageMin, DamageMax].
func (u *Unit) RollDamage(rng *rand.Rand) int {
	if u.DamageMax <= u.DamageMin {
		return u.DamageMin
	}
	return u.DamageMin + rng.Intn(u.DamageMax-u.DamageMin+1)
}

// HealthFraction возвращает долю оставшегося здоровья (0..1).
func (u *Unit) HealthFraction() float64 {
	if u.MaxHP <= 0 {
		return 0
	}
	return float64(u.HP) / float64(u.MaxHP)
}

// FaceToward поворачивает юнита в сторону цели. Для совпадающих
// позиций взгляд не меняется.
func (u *Unit) FaceToward(target Position) {
	if d, ok := u.Pos.DirectionTo(target); ok {
		u.Facing = d
	}
}

// ArcFrom определяет, в каком секторе относительно взгляда юнита
// находится атакующая позиция: фронт (взгляд и +-1), тыл
// (противоположное направление и +-1) или фланги.
func (u *Unit) ArcFrom(attacker Position) Arc {
	dir, ok := u.Pos.DirectionTo(attacker)
	if !ok {
		return ArcFront
	}
	rel := (int(dir) - int(u.Facing) + NumDirections) % NumDirections
	switch rel {
	case 0, 1, 7:
		return ArcFront
	case 3, 4, 5:
		return ArcRear
	}
	return ArcSide
}

// IsEnemy проверяет принадлежность к противоположной фракции.
func (u *Unit) IsEnemy(other *Unit) bool {
	return other != nil && other.Faction != u.Faction
}
