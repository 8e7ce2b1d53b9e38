// Пакет storage пишет и читает записи боёв в формате GTRP: бинарный
// заголовок фиксированного размера, затем поток записей с JSON-телом.
// Запись ведётся по мере хода боя, файл остаётся читаемым до последней
// целой записи даже после аварийного обрыва.
package storage

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/mikkokallio/goblin-tactics/internal/engine"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
)

const (
	MagicHeader string = `GTRP` // 4 байта
	Version1    uint32 = 1
)

// Виды записей - по одному на каждый метод Sink.
const (
	KindHeader   uint8 = 1
	KindDecision uint8 = 2
	KindTurn     uint8 = 3
	KindResult   uint8 = 4
)

// ReplayFileHeader - точное представление заголовка файла в памяти.
// binary.Write умеет писать это целиком, так как тут нет слайсов и строк,
// только массивы и числа.
type ReplayFileHeader struct {
	Magic         [4]byte // 4 байта
	Version       uint32  // 4 байта
	SchemaVersion uint32  // 4 байта
	Seed          int64   // 8 байт
	Timestamp     int64   // 8 байт
}

// RecordHeader - заголовок каждой записи. Номер хода продублирован из
// JSON-тела, чтобы перемотка не требовала декодировать каждый кадр.
type RecordHeader struct {
	Turn       int32  // 4
	Kind       uint8  // 1
	PayloadLen uint32 // 4
}

// Store управляет каталогом записей боёв.
type Store struct {
	Dir string
}

// NewStore открывает каталог записей, создавая его при необходимости.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create replay dir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

func battleName(n int) string { return fmt.Sprintf("battle_%05d.gtrp", n) }

// nextIndex находит первый свободный порядковый номер файла по маске.
func nextIndex(dir, pattern, scanFormat string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, err
	}
	next := 0
	for _, m := range matches {
		var n int
		if _, err := fmt.Sscanf(filepath.Base(m), scanFormat, &n); err == nil && n >= next {
			next = n + 1
		}
	}
	return next, nil
}

// NewWriter создает файл записи под следующим свободным номером.
func (s *Store) NewWriter() (*Writer, error) {
	n, err := nextIndex(s.Dir, "battle_*.gtrp", "battle_%d.gtrp")
	if err != nil {
		return nil, err
	}
	return NewWriter(filepath.Join(s.Dir, battleName(n)))
}

// Writer пишет кадры одного боя на диск по мере поступления.
// Заголовок файла уходит вместе с первым кадром: до OnBattleStart
// ни seed, ни версия схемы наблюдений не известны.
type Writer struct {
	f       *os.File
	buf     *bufio.Writer
	path    string
	started bool
	records int
}

var _ engine.Sink = (*Writer)(nil)

// NewWriter создает файл записи по точному пути.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create replay file: %w", err)
	}
	return &Writer{f: f, buf: bufio.NewWriter(f), path: path}, nil
}

// Path возвращает путь записываемого файла.
func (w *Writer) Path() string { return w.path }

// Records возвращает число записанных кадров.
func (w *Writer) Records() int { return w.records }

func (w *Writer) OnBattleStart(h *api.BattleHeader) error {
	if w.started {
		return fmt.Errorf("battle header already written")
	}

	header := ReplayFileHeader{
		Version:       Version1,
		SchemaVersion: uint32(h.SchemaVersion),
		Seed:          h.Seed,
		Timestamp:     time.Now().Unix(),
	}
	copy(header.Magic[:], MagicHeader) // Копируем строку в массив [4]byte

	// Пишем структуру целиком одной командой.
	if err := binary.Write(w.buf, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	w.started = true

	return w.writeRecord(KindHeader, 0, h)
}

func (w *Writer) OnDecision(d *api.DecisionView) error {
	return w.writeRecord(KindDecision, int32(d.Turn), d)
}

func (w *Writer) OnTurn(f *api.TurnFrame) error {
	return w.writeRecord(KindTurn, int32(f.Turn), f)
}

func (w *Writer) OnBattleEnd(r *api.BattleResult) error {
	return w.writeRecord(KindResult, int32(r.Turns), r)
}

func (w *Writer) writeRecord(kind uint8, turn int32, payload interface{}) error {
	if !w.started {
		return fmt.Errorf("record before battle header")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if uint64(len(body)) > math.MaxUint32 {
		return fmt.Errorf("payload too long: %d", len(body))
	}

	rh := RecordHeader{
		Turn:       turn,
		Kind:       kind,
		PayloadLen: uint32(len(body)),
	}

	if err := binary.Write(w.buf, binary.LittleEndian, &rh); err != nil {
		return err
	}
	if _, err := w.buf.Write(body); err != nil {
		return err
	}

	w.records++
	return nil
}

// Close сбрасывает буфер и закрывает файл.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to flush replay: %w", err)
	}
	return w.f.Close()
}

// Recorder пишет серию боёв: каждый новый бой уходит в отдельный файл
// хранилища. В отличие от Writer его можно держать подключённым к
// тренеру или серверу сколько угодно эпизодов подряд.
type Recorder struct {
	store *Store
	w     *Writer
}

// Recorder создает долгоживущий приемник серий боёв.
func (s *Store) Recorder() *Recorder { return &Recorder{store: s} }

var _ engine.Sink = (*Recorder)(nil)

func (r *Recorder) OnBattleStart(h *api.BattleHeader) error {
	if r.w != nil {
		// Предыдущий бой оборвался без итога - закрываем что есть.
		r.w.Close()
		r.w = nil
	}
	w, err := r.store.NewWriter()
	if err != nil {
		return err
	}
	r.w = w
	return r.w.OnBattleStart(h)
}

func (r *Recorder) OnDecision(d *api.DecisionView) error {
	if r.w == nil {
		return nil
	}
	return r.w.OnDecision(d)
}

func (r *Recorder) OnTurn(f *api.TurnFrame) error {
	if r.w == nil {
		return nil
	}
	return r.w.OnTurn(f)
}

func (r *Recorder) OnBattleEnd(res *api.BattleResult) error {
	if r.w == nil {
		return nil
	}
	if err := r.w.OnBattleEnd(res); err != nil {
		r.w.Close()
		r.w = nil
		return err
	}
	err := r.w.Close()
	r.w = nil
	return err
}

// Close закрывает файл боя, оставшегося без итогового кадра.
func (r *Recorder) Close() error {
	if r.w == nil {
		return nil
	}
	err := r.w.Close()
	r.w = nil
	return err
}
