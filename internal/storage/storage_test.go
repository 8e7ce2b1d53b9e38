package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikkokallio/goblin-tactics/pkg/api"
)

func sampleHeader() *api.BattleHeader {
	return &api.BattleHeader{
		SchemaVersion: 3,
		Seed:          42,
		Width:         6,
		Height:        4,
		Map:           []string{"######", "#....#", "#.~..#", "######"},
		Units: []api.UnitView{
			{ID: 0, Faction: "KNIGHTS", X: 1, Y: 1, HP: 30, MaxHP: 30, Facing: 2, Alive: true},
			{ID: 1, Faction: "GOBLINS", X: 4, Y: 2, HP: 10, MaxHP: 10, Facing: 6, Alive: true},
		},
		MaxTurns:     50,
		StormEnabled: true,
	}
}

func sampleTurns() []*api.TurnFrame {
	return []*api.TurnFrame{
		{
			Turn: 1,
			Units: []api.UnitView{
				{ID: 0, Faction: "KNIGHTS", X: 2, Y: 1, HP: 30, MaxHP: 30, Facing: 2, Alive: true},
				{ID: 1, Faction: "GOBLINS", X: 4, Y: 2, HP: 6, MaxHP: 10, Facing: 6, Alive: true},
			},
			Events: []api.EventView{
				{Type: "DAMAGE", Actor: 0, Target: 1, Value: 4, X: 4, Y: 2},
			},
			Storm: &api.StormView{Shrinking: false, Radius: 24, CenterX: 3, CenterY: 2},
		},
		{
			Turn: 2,
			Units: []api.UnitView{
				{ID: 0, Faction: "KNIGHTS", X: 3, Y: 1, HP: 30, MaxHP: 30, Facing: 2, Alive: true},
				{ID: 1, Faction: "GOBLINS", X: 4, Y: 2, HP: 6, MaxHP: 10, Facing: 6, Alive: true},
			},
			Storm: &api.StormView{Shrinking: true, Radius: 23, CenterX: 3, CenterY: 2},
		},
	}
}

func sampleResult() *api.BattleResult {
	return &api.BattleResult{
		Outcome:      "KNIGHTS_WIN",
		Winner:       "KNIGHTS",
		Turns:        2,
		KnightsAlive: 1,
		Seed:         42,
	}
}

// writeSampleBattle записывает эталонный бой и возвращает путь файла.
func writeSampleBattle(t *testing.T, dir string) string {
	t.Helper()

	w, err := NewWriter(filepath.Join(dir, "battle_00000.gtrp"))
	require.NoError(t, err)

	require.NoError(t, w.OnBattleStart(sampleHeader()))
	require.NoError(t, w.OnDecision(&api.DecisionView{
		Turn: 1, UnitID: 1, SchemaVersion: 3,
		Features:   []float64{0.5, 0.25, 1},
		Action:     2,
		ActionName: "MOVE_E",
	}))
	for _, f := range sampleTurns() {
		require.NoError(t, w.OnTurn(f))
	}
	require.NoError(t, w.OnBattleEnd(sampleResult()))
	require.NoError(t, w.Close())

	return w.Path()
}

func TestReplayRoundTrip(t *testing.T) {
	path := writeSampleBattle(t, t.TempDir())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	hdr := r.Header()
	assert.Equal(t, MagicHeader, string(hdr.Magic[:]))
	assert.Equal(t, Version1, r.Header().Version)
	assert.Equal(t, uint32(3), r.Header().SchemaVersion)
	assert.Equal(t, int64(42), r.Header().Seed)

	rec := &Recording{}
	require.NoError(t, r.Replay(rec))

	assert.Equal(t, sampleHeader(), rec.Header)
	require.Len(t, rec.Decisions, 1)
	assert.Equal(t, 1, rec.Decisions[0].UnitID)
	assert.Equal(t, []float64{0.5, 0.25, 1}, rec.Decisions[0].Features)
	assert.Equal(t, "MOVE_E", rec.Decisions[0].ActionName)
	require.Len(t, rec.Turns, 2)
	assert.Equal(t, sampleTurns(), rec.Turns)
	assert.Equal(t, sampleResult(), rec.Result)
}

func TestWriterRequiresHeaderFirst(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "battle_00000.gtrp"))
	require.NoError(t, err)
	defer w.Close()

	err = w.OnTurn(&api.TurnFrame{Turn: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before battle header")

	require.NoError(t, w.OnBattleStart(sampleHeader()))
	assert.Error(t, w.OnBattleStart(sampleHeader()), "повторный заголовок должен отклоняться")
}

func TestReaderRejectsWrongMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gtrp")

	header := ReplayFileHeader{Version: Version1}
	copy(header.Magic[:], "NOPE")
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &header))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid magic")
}

func TestReaderRejectsWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.gtrp")

	header := ReplayFileHeader{Version: 99}
	copy(header.Magic[:], MagicHeader)
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &header))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version: 99")
}

func TestReaderTruncatedFile(t *testing.T) {
	path := writeSampleBattle(t, t.TempDir())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-3))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Error(t, r.Replay(&Recording{}), "обрыв посреди записи должен быть ошибкой")
}

func TestStoreSequentialNaming(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "data", "battles"))
	require.NoError(t, err)

	w0, err := store.NewWriter()
	require.NoError(t, err)
	assert.Equal(t, "battle_00000.gtrp", filepath.Base(w0.Path()))
	require.NoError(t, w0.OnBattleStart(sampleHeader()))
	require.NoError(t, w0.Close())

	w1, err := store.NewWriter()
	require.NoError(t, err)
	assert.Equal(t, "battle_00001.gtrp", filepath.Base(w1.Path()))
	require.NoError(t, w1.OnBattleStart(sampleHeader()))
	require.NoError(t, w1.Close())

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"battle_00000.gtrp", "battle_00001.gtrp"}, names)

	latest, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, "battle_00001.gtrp", latest)
}

func TestRecorderSplitsBattlesIntoFiles(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	rec := store.Recorder()
	for i := 0; i < 2; i++ {
		require.NoError(t, rec.OnBattleStart(sampleHeader()))
		require.NoError(t, rec.OnTurn(sampleTurns()[0]))
		require.NoError(t, rec.OnBattleEnd(sampleResult()))
	}
	require.NoError(t, rec.Close())

	names, err := store.List()
	require.NoError(t, err)
	require.Equal(t, []string{"battle_00000.gtrp", "battle_00001.gtrp"}, names)

	for _, name := range names {
		loaded, err := store.Load(name)
		require.NoError(t, err)
		assert.Equal(t, sampleHeader(), loaded.Header)
		require.Len(t, loaded.Turns, 1)
		require.NotNil(t, loaded.Result)
	}
}

func TestRecorderRecoversFromAbortedBattle(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	rec := store.Recorder()

	// Первый бой обрывается без итогового кадра: следующий
	// OnBattleStart должен закрыть его файл и открыть новый.
	require.NoError(t, rec.OnBattleStart(sampleHeader()))
	require.NoError(t, rec.OnTurn(sampleTurns()[0]))
	require.NoError(t, rec.OnTurn(sampleTurns()[1]))

	require.NoError(t, rec.OnBattleStart(sampleHeader()))
	require.NoError(t, rec.OnBattleEnd(sampleResult()))
	require.NoError(t, rec.Close())

	// Кадры без открытого боя молча пропускаются.
	require.NoError(t, rec.OnTurn(sampleTurns()[0]))

	names, err := store.List()
	require.NoError(t, err)
	require.Equal(t, []string{"battle_00000.gtrp", "battle_00001.gtrp"}, names)

	// Оборванный файл читается до последней целой записи.
	aborted, err := store.Load("battle_00000.gtrp")
	require.NoError(t, err)
	assert.Nil(t, aborted.Result)
	require.Len(t, aborted.Turns, 2)

	finished, err := store.Load("battle_00001.gtrp")
	require.NoError(t, err)
	require.NotNil(t, finished.Result)
}

func TestStoreLoad(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	writeSampleBattle(t, store.Dir)

	rec, err := store.Load("battle_00000.gtrp")
	require.NoError(t, err)
	assert.Equal(t, sampleHeader(), rec.Header)
	assert.Len(t, rec.Turns, 2)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "KNIGHTS", rec.Result.Winner)
}

func TestStoreLatestEmptyDir(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Latest()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no battle records")
}

func TestExperienceWriterDumpsPerBattle(t *testing.T) {
	dir := t.TempDir()
	w, err := NewExperienceWriter(dir)
	require.NoError(t, err)

	require.NoError(t, w.OnBattleStart(sampleHeader()))
	w.Add(7, []float64{0.1, 0.2}, 8, 52.5, []float64{0.3, 0.4}, false)
	w.Add(7, []float64{0.3, 0.4}, 9, -100, nil, true)
	require.NoError(t, w.OnBattleEnd(sampleResult()))

	body, err := os.ReadFile(filepath.Join(dir, "experiences_00000.json"))
	require.NoError(t, err)

	var dump ExperienceDump
	require.NoError(t, json.Unmarshal(body, &dump))
	assert.Equal(t, 0, dump.Battle)
	assert.Equal(t, "KNIGHTS", dump.Winner)
	require.Len(t, dump.Experiences, 2)
	assert.Equal(t, 7, dump.Experiences[0].UnitID)
	assert.Equal(t, 8, dump.Experiences[0].Action)
	assert.InDelta(t, 52.5, dump.Experiences[0].Reward, 1e-12)
	assert.True(t, dump.Experiences[1].Done)

	// Второй эпизод уходит в следующий файл.
	require.NoError(t, w.OnBattleStart(sampleHeader()))
	w.Add(3, []float64{1}, 0, 0.5, []float64{0}, false)
	require.NoError(t, w.OnBattleEnd(sampleResult()))
	assert.FileExists(t, filepath.Join(dir, "experiences_00001.json"))
}

func TestExperienceWriterSkipsEmptyEpisode(t *testing.T) {
	dir := t.TempDir()
	w, err := NewExperienceWriter(dir)
	require.NoError(t, err)

	require.NoError(t, w.OnBattleStart(sampleHeader()))
	require.NoError(t, w.OnBattleEnd(sampleResult()))

	assert.NoFileExists(t, filepath.Join(dir, "experiences_00000.json"))
}

func TestExperienceWriterResumesNumbering(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "experiences_00003.json"), []byte("{}"), 0644))

	w, err := NewExperienceWriter(dir)
	require.NoError(t, err)

	require.NoError(t, w.OnBattleStart(sampleHeader()))
	w.Add(1, []float64{0}, 0, 1, []float64{0}, true)
	require.NoError(t, w.OnBattleEnd(sampleResult()))

	assert.FileExists(t, filepath.Join(dir, "experiences_00004.json"))
}
