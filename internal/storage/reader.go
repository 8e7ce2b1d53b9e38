package storage

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/mikkokallio/goblin-tactics/internal/engine"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
)

// Reader последовательно читает запись боя.
type Reader struct {
	f      *os.File
	buf    *bufio.Reader
	header ReplayFileHeader
}

// Open открывает запись и валидирует заголовок файла.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := &Reader{f: f, buf: bufio.NewReader(f)}
	if err := binary.Read(r.buf, binary.LittleEndian, &r.header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Валидация
	if string(r.header.Magic[:]) != MagicHeader {
		f.Close()
		return nil, fmt.Errorf("invalid magic")
	}
	if r.header.Version != Version1 {
		f.Close()
		return nil, fmt.Errorf("unsupported version: %d (expected %d)", r.header.Version, Version1)
	}

	return r, nil
}

// Header возвращает заголовок файла записи.
func (r *Reader) Header() ReplayFileHeader { return r.header }

// Next читает следующую запись. На конце файла возвращает io.EOF;
// обрыв посреди записи - ошибка.
func (r *Reader) Next() (RecordHeader, []byte, error) {
	var rh RecordHeader
	if err := binary.Read(r.buf, binary.LittleEndian, &rh); err != nil {
		if err == io.EOF {
			return rh, nil, io.EOF
		}
		return rh, nil, fmt.Errorf("failed to read record header: %w", err)
	}

	body := make([]byte, rh.PayloadLen)
	if _, err := io.ReadFull(r.buf, body); err != nil {
		return rh, nil, fmt.Errorf("failed to read record body: %w", err)
	}
	return rh, body, nil
}

// Replay прогоняет запись через потребителя в исходном порядке кадров.
func (r *Reader) Replay(sink engine.Sink) error {
	for {
		rh, body, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := dispatch(sink, rh.Kind, body); err != nil {
			return err
		}
	}
}

func dispatch(sink engine.Sink, kind uint8, body []byte) error {
	switch kind {
	case KindHeader:
		h := &api.BattleHeader{}
		if err := json.Unmarshal(body, h); err != nil {
			return fmt.Errorf("failed to decode battle header: %w", err)
		}
		return sink.OnBattleStart(h)
	case KindDecision:
		d := &api.DecisionView{}
		if err := json.Unmarshal(body, d); err != nil {
			return fmt.Errorf("failed to decode decision: %w", err)
		}
		return sink.OnDecision(d)
	case KindTurn:
		f := &api.TurnFrame{}
		if err := json.Unmarshal(body, f); err != nil {
			return fmt.Errorf("failed to decode turn frame: %w", err)
		}
		return sink.OnTurn(f)
	case KindResult:
		res := &api.BattleResult{}
		if err := json.Unmarshal(body, res); err != nil {
			return fmt.Errorf("failed to decode battle result: %w", err)
		}
		return sink.OnBattleEnd(res)
	default:
		return fmt.Errorf("unknown record kind: %d", kind)
	}
}

// Close закрывает файл записи.
func (r *Reader) Close() error { return r.f.Close() }

// Recording - полностью декодированная запись боя. Сама реализует
// Sink, поэтому годится и как приёмник Replay, и как буфер живого боя
// для сервера трансляции.
type Recording struct {
	Header    *api.BattleHeader
	Decisions []*api.DecisionView
	Turns     []*api.TurnFrame
	Result    *api.BattleResult
}

var _ engine.Sink = (*Recording)(nil)

func (rec *Recording) OnBattleStart(h *api.BattleHeader) error {
	rec.Header = h
	return nil
}

func (rec *Recording) OnDecision(d *api.DecisionView) error {
	rec.Decisions = append(rec.Decisions, d)
	return nil
}

func (rec *Recording) OnTurn(f *api.TurnFrame) error {
	rec.Turns = append(rec.Turns, f)
	return nil
}

func (rec *Recording) OnBattleEnd(r *api.BattleResult) error {
	rec.Result = r
	return nil
}

// Open открывает запись по имени файла внутри каталога.
func (s *Store) Open(name string) (*Reader, error) {
	return Open(filepath.Join(s.Dir, name))
}

// Load читает запись по имени целиком.
func (s *Store) Load(name string) (*Recording, error) {
	r, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	rec := &Recording{}
	if err := r.Replay(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// List возвращает имена записей каталога, отсортированные по номеру.
func (s *Store) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "battle_*.gtrp"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names, nil
}

// Latest возвращает имя самой свежей записи.
func (s *Store) Latest() (string, error) {
	names, err := s.List()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no battle records in %s", s.Dir)
	}
	return names[len(names)-1], nil
}
