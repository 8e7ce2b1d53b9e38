package utils

import (
	"crypto/rand"
	"encoding/hex"
	"hash/fnv"
)

// GenerateID создает простой уникальный ID (замена UUID для снижения зависимостей).
// Используется в именах тренировочных прогонов.
func GenerateID() string {
	b := make([]byte, 8) // 16 символов hex
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate random ID: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// StringToSeed детерминированно сворачивает имя эксперимента в зерно.
// Одно и то же имя всегда даёт одно и то же число, поэтому на
// воспроизводимый прогон можно ссылаться человекочитаемой строкой.
func StringToSeed(name string) int64 {
	h := fnv.New64a()
	// Write у fnv не возвращает ошибок
	_, _ = h.Write([]byte(name))
	seed := int64(h.Sum64())
	if seed < 0 {
		seed = -seed
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}
