package trainer

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikkokallio/goblin-tactics/internal/config"
)

// tinyConfig - конфигурация для быстрых прогонов: маленькие отряды,
// короткие бои, крошечная сеть.
func tinyConfig(t *testing.T) config.Settings {
	t.Helper()

	cfg := config.Default()
	cfg.Seed = 42
	cfg.MaxTurns = 5
	cfg.GrailMode = false
	cfg.Knights = config.FactionSettings{
		CountMin: 2, CountMax: 2,
		HPMin: 10, HPMax: 12,
		DamageMin: 2, DamageMax: 3,
		Speed: 5, VisionRange: 4,
	}
	cfg.Goblins = config.FactionSettings{
		CountMin: 3, CountMax: 3,
		HPMin: 6, HPMax: 8,
		DamageMin: 1, DamageMax: 2,
		Speed: 4, VisionRange: 4,
	}
	cfg.Storm.Enabled = false
	cfg.Training = testTraining()
	cfg.Training.Episodes = 2
	cfg.Training.CheckpointEvery = 1
	cfg.Training.CheckpointDir = t.TempDir()
	return cfg
}

func readMetrics(t *testing.T, runDir string) [][]string {
	t.Helper()

	f, err := os.Open(filepath.Join(runDir, "metrics.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestTrainerTrainWritesArtifacts(t *testing.T) {
	cfg := tinyConfig(t)

	tr, err := NewTrainer(cfg)
	require.NoError(t, err)
	runDir := filepath.Join(t.TempDir(), "run")
	tr.SetRunDir(runDir)

	require.NoError(t, tr.Train(0))
	require.NoError(t, tr.Close())

	// Чекпойнт на каждом эпизоде плюс статистика рядом.
	assert.FileExists(t, filepath.Join(cfg.Training.CheckpointDir, "checkpoint_ep1.json"))
	assert.FileExists(t, filepath.Join(cfg.Training.CheckpointDir, "checkpoint_ep2.json"))
	assert.FileExists(t, filepath.Join(cfg.Training.CheckpointDir, "checkpoint_ep2_stats.json"))

	rows := readMetrics(t, runDir)
	require.Len(t, rows, 3, "заголовок и по строке на эпизод")
	assert.Equal(t, "episode", rows[0][0])
	assert.Len(t, rows[1], 10)
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, "train", rows[1][1])

	assert.Equal(t, 2, tr.Agent().Episode())
	assert.Less(t, tr.Agent().Epsilon(), cfg.Training.EpsilonStart)
}

func TestTrainerCurriculumPhases(t *testing.T) {
	cfg := tinyConfig(t)

	tr, err := NewTrainer(cfg)
	require.NoError(t, err)
	tr.SetRunDir(t.TempDir())

	require.NoError(t, tr.TrainCurriculum(1, 1))
	require.NoError(t, tr.Close())

	// Итог арены сохраняется отдельным чекпойнтом для сравнения фаз.
	assert.FileExists(t, filepath.Join(cfg.Training.CheckpointDir, "checkpoint_arena_final.json"))
	assert.FileExists(t, filepath.Join(cfg.Training.CheckpointDir, "checkpoint_ep2.json"))

	rows := readMetrics(t, tr.RunDir())
	require.Len(t, rows, 3)
	assert.Equal(t, "arena", rows[1][1])
	assert.Equal(t, "dungeon", rows[2][1])
}

func TestTrainerResumeRestoresProgress(t *testing.T) {
	cfg := tinyConfig(t)

	tr, err := NewTrainer(cfg)
	require.NoError(t, err)
	tr.SetRunDir(t.TempDir())
	require.NoError(t, tr.Train(0))
	require.NoError(t, tr.Close())

	resumed, err := NewTrainer(cfg)
	require.NoError(t, err)
	require.NoError(t, resumed.Resume(filepath.Join(cfg.Training.CheckpointDir, "checkpoint_ep2.json")))

	assert.Equal(t, 2, resumed.Agent().Episode())
	assert.InDelta(t, 0.995*0.995, resumed.Agent().Epsilon(), 1e-9)
}

func TestTrainerEvaluate(t *testing.T) {
	cfg := tinyConfig(t)

	tr, err := NewTrainer(cfg)
	require.NoError(t, err)

	res, err := tr.Evaluate(2)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Battles)
	assert.Equal(t, 2, res.KnightWins+res.GoblinWins+res.Stalemates)
	assert.Greater(t, res.AvgTurns, 0.0)
	assert.LessOrEqual(t, res.AvgTurns, float64(cfg.MaxTurns))

	// Оценка не трогает состояние обучения.
	assert.Zero(t, tr.Agent().Episode())
	assert.Zero(t, tr.Agent().BufferLen())
}

func TestNewTrainerRejectsBadRewardExpr(t *testing.T) {
	cfg := tinyConfig(t)
	cfg.Training.RewardExpr = "kills +"

	_, err := NewTrainer(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile reward_expr")
}
