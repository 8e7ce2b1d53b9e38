package api

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Validator - интерфейс, который могут реализовать DTO
type Validator interface {
	Validate() error
}

func (p WatchPayload) Validate() error {
	// Пустое имя допустимо: сервер выберет самую свежую запись.
	// Путь с каталогами - нет: записи живут строго в одном каталоге.
	if p.Battle == "" {
		return nil
	}
	if p.Battle != filepath.Base(p.Battle) {
		return fmt.Errorf("battle name %q must not contain path separators", p.Battle)
	}
	return nil
}

func (p StepPayload) Validate() error {
	if p.Turns < 0 {
		return errors.New("step count cannot be negative")
	}
	if p.Turns > 1000 {
		return errors.New("step count too large")
	}
	return nil
}

func (p SeekPayload) Validate() error {
	if p.Turn < 0 {
		return errors.New("seek turn cannot be negative")
	}
	return nil
}
