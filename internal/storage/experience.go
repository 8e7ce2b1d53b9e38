package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikkokallio/goblin-tactics/internal/engine"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
)

// Experience - один переход обучаемой политики в JSON-выгрузке.
type Experience struct {
	UnitID int       `json:"unitId"`
	State  []float64 `json:"state"`
	Action int       `json:"action"`
	Reward float64   `json:"reward"`
	Next   []float64 `json:"nextState"`
	Done   bool      `json:"done"`
}

// ExperienceDump - содержимое одного файла выгрузки: итог эпизода
// и все его переходы.
type ExperienceDump struct {
	Battle      int          `json:"battle"`
	Winner      string       `json:"winner,omitempty"`
	Experiences []Experience `json:"experiences"`
}

// ExperienceWriter копит переходы эпизода и по завершении боя пишет их
// одним файлом experiences_%05d.json. Подключается к обучению двумя
// концами: Add - к политике (OnTransition), сам писатель - к эпизодам
// как Sink, чтобы знать границы боя и победителя.
type ExperienceWriter struct {
	dir  string
	next int
	buf  []Experience
}

var _ engine.Sink = (*ExperienceWriter)(nil)

// NewExperienceWriter открывает каталог выгрузки и продолжает
// нумерацию с первого свободного номера.
func NewExperienceWriter(dir string) (*ExperienceWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create experience dir: %w", err)
	}
	next, err := nextIndex(dir, "experiences_*.json", "experiences_%d.json")
	if err != nil {
		return nil, err
	}
	return &ExperienceWriter{dir: dir, next: next}, nil
}

// Add копит один переход текущего эпизода.
func (w *ExperienceWriter) Add(unitID int, state []float64, action int, reward float64, next []float64, done bool) {
	w.buf = append(w.buf, Experience{
		UnitID: unitID,
		State:  state,
		Action: action,
		Reward: reward,
		Next:   next,
		Done:   done,
	})
}

func (w *ExperienceWriter) OnBattleStart(*api.BattleHeader) error {
	// Хвост оборванного эпизода не должен попасть в следующий файл.
	w.buf = nil
	return nil
}

func (w *ExperienceWriter) OnDecision(*api.DecisionView) error { return nil }

func (w *ExperienceWriter) OnTurn(*api.TurnFrame) error { return nil }

func (w *ExperienceWriter) OnBattleEnd(r *api.BattleResult) error {
	if len(w.buf) == 0 {
		return nil
	}

	dump := ExperienceDump{
		Battle:      w.next,
		Winner:      r.Winner,
		Experiences: w.buf,
	}
	body, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal experiences: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("experiences_%05d.json", w.next))
	if err := os.WriteFile(path, body, 0644); err != nil {
		return fmt.Errorf("failed to write experiences: %w", err)
	}

	w.next++
	w.buf = nil
	return nil
}
