package engine

import (
	"errors"
)

// ErrSchemaMismatch означает, что политика обучена на другой версии
// схемы наблюдений. Молча подсовывать ей вектор другой длины нельзя:
// сеть поведёт себя непредсказуемо и отладить это почти невозможно.
var ErrSchemaMismatch = errors.New("observation schema version mismatch")
