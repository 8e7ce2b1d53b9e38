// Пакет trainer обучает политику гоблинов на эпизодах боя: DQN на
// векторе признаков наблюдения, воспроизведение опыта, целевая сеть
// и эпсилон-жадное исследование. Рыцарями играет скриптовый ИИ -
// он и есть экзаменатор.
package trainer

import (
	"encoding/csv"
	"fmt"
	mrand "math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"

	"github.com/mikkokallio/goblin-tactics/internal/ai"
	"github.com/mikkokallio/goblin-tactics/internal/config"
	"github.com/mikkokallio/goblin-tactics/internal/domain"
	"github.com/mikkokallio/goblin-tactics/internal/engine"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
	"github.com/mikkokallio/goblin-tactics/pkg/logger"
	"github.com/mikkokallio/goblin-tactics/pkg/utils"
)

// Trainer гоняет серии эпизодов и ведет журнал обучения: метрики CSV
// в каталоге запуска, чекпойнты весов в каталоге моделей.
type Trainer struct {
	cfg    config.Settings
	agent  *Agent
	policy *Policy

	runDir      string
	metricsFile *os.File
	metrics     *csv.Writer

	// sinks - дополнительные потребители кадров эпизода (запись боёв,
	// выгрузка опыта). Политика подключается всегда, эти - опционально.
	sinks []engine.Sink

	log *logrus.Entry
}

// NewTrainer собирает агента и обучающую политику под конфигурацию.
// Каталог запуска (метрики) именуется временной меткой и создается
// лениво при старте обучения.
func NewTrainer(cfg config.Settings) (*Trainer, error) {
	rng := rand.New(rand.NewSource(uint64(cfg.Seed)))
	agent := NewAgent(engine.FeatureCount, domain.NumActions, cfg.Training, rng)

	policy, err := NewPolicy(agent, cfg.Training.RewardExpr, true)
	if err != nil {
		return nil, err
	}

	// Суффикс из случайного ID разводит прогоны, стартовавшие в одну
	// и ту же секунду.
	runName := time.Now().UTC().Format("20060102_150405") + "_" + utils.GenerateID()[:6]

	return &Trainer{
		cfg:    cfg,
		agent:  agent,
		policy: policy,
		runDir: filepath.Join("runs", runName),
		log: logger.Log.WithFields(logrus.Fields{
			"component": "trainer",
		}),
	}, nil
}

// Agent открывает агента (оценка, сохранение из CLI).
func (t *Trainer) Agent() *Agent { return t.agent }

// Policy открывает обучающую политику (выгрузка опыта).
func (t *Trainer) Policy() *Policy { return t.policy }

// RunDir возвращает каталог метрик текущего запуска.
func (t *Trainer) RunDir() string { return t.runDir }

// AddSink подключает потребителя кадров ко всем обучающим эпизодам.
func (t *Trainer) AddSink(s engine.Sink) {
	t.sinks = append(t.sinks, s)
}

// SetRunDir переопределяет каталог метрик. Работает только до первого
// эпизода: открытый журнал не переезжает.
func (t *Trainer) SetRunDir(dir string) {
	if t.metrics == nil {
		t.runDir = dir
	}
}

// Resume продолжает обучение с чекпойнта: веса, эпсилон и счетчик
// эпизодов восстанавливаются.
func (t *Trainer) Resume(path string) error {
	if err := t.agent.Load(path); err != nil {
		return err
	}
	t.log.WithFields(logrus.Fields{
		"checkpoint": path,
		"episode":    t.agent.Episode(),
		"epsilon":    t.agent.Epsilon(),
	}).Info("Resumed from checkpoint")
	return nil
}

// Close сбрасывает и закрывает журнал метрик.
func (t *Trainer) Close() error {
	if t.metricsFile == nil {
		return nil
	}
	t.metrics.Flush()
	if err := t.metrics.Error(); err != nil {
		return fmt.Errorf("failed to flush metrics: %w", err)
	}
	return t.metricsFile.Close()
}

// Train прогоняет episodes эпизодов обучения на основной конфигурации.
// episodes <= 0 означает значение из конфигурации.
func (t *Trainer) Train(episodes int) error {
	if episodes <= 0 {
		episodes = t.cfg.Training.Episodes
	}
	if err := t.trainPhase(t.cfg, episodes, "train"); err != nil {
		return err
	}
	return t.saveCheckpoint(fmt.Sprintf("checkpoint_ep%d.json", t.agent.Episode()))
}

// TrainCurriculum обучает в два этапа: сначала чистая тактика боя на
// открытой арене, затем те же навыки в подземелье с навигацией.
// Веса между этапами сохраняются - второй этап продолжает первый.
func (t *Trainer) TrainCurriculum(arenaEpisodes, dungeonEpisodes int) error {
	arenaCfg := t.cfg
	arenaCfg.Map.Arena = true
	arenaCfg.GrailMode = false

	t.log.WithFields(logrus.Fields{"episodes": arenaEpisodes}).Info("Curriculum phase 1: arena combat")
	if err := t.trainPhase(arenaCfg, arenaEpisodes, "arena"); err != nil {
		return err
	}
	if err := t.saveCheckpoint("checkpoint_arena_final.json"); err != nil {
		return err
	}

	dungeonCfg := t.cfg
	dungeonCfg.Map.Arena = false

	t.log.WithFields(logrus.Fields{"episodes": dungeonEpisodes}).Info("Curriculum phase 2: dungeon navigation")
	if err := t.trainPhase(dungeonCfg, dungeonEpisodes, "dungeon"); err != nil {
		return err
	}
	return t.saveCheckpoint(fmt.Sprintf("checkpoint_ep%d.json", t.agent.Episode()))
}

// trainPhase - один этап обучения на заданной конфигурации.
func (t *Trainer) trainPhase(cfg config.Settings, episodes int, phase string) error {
	metrics, err := t.ensureMetrics()
	if err != nil {
		return err
	}

	t.log.WithFields(logrus.Fields{
		"phase":    phase,
		"episodes": episodes,
		"epsilon":  t.agent.Epsilon(),
	}).Info("Training phase started")

	bar := progressbar.Default(int64(episodes), phase)
	every := t.cfg.Training.CheckpointEvery

	for i := 0; i < episodes; i++ {
		// Зерно эпизода выводится из мастер-зерна и сквозного номера
		// эпизода: возобновленное обучение не повторяет старые бои.
		epCfg := cfg
		epCfg.Seed = cfg.Seed + int64(t.agent.Episode())

		result, err := t.runEpisode(&epCfg)
		if err != nil {
			return fmt.Errorf("failed to run episode %d: %w", t.agent.Episode(), err)
		}
		t.agent.EndEpisode()

		row := []string{
			strconv.Itoa(t.agent.Episode()),
			phase,
			strconv.Itoa(result.Turns),
			result.Outcome,
			strconv.FormatFloat(t.policy.EpisodeReward(), 'f', 2, 64),
			strconv.FormatFloat(t.agent.Epsilon(), 'f', 4, 64),
			strconv.Itoa(t.policy.Transitions()),
			strconv.Itoa(result.KnightsAlive),
			strconv.Itoa(result.GoblinsAlive),
			strconv.FormatInt(epCfg.Seed, 10),
		}
		if err := metrics.Write(row); err != nil {
			return fmt.Errorf("failed to write metrics row: %w", err)
		}
		metrics.Flush()

		bar.Add(1)

		if every > 0 && t.agent.Episode()%every == 0 {
			name := fmt.Sprintf("checkpoint_ep%d.json", t.agent.Episode())
			if err := t.saveCheckpoint(name); err != nil {
				return err
			}
		}
	}

	t.log.WithFields(logrus.Fields{
		"phase":   phase,
		"episode": t.agent.Episode(),
		"epsilon": t.agent.Epsilon(),
		"buffer":  t.agent.BufferLen(),
	}).Info("Training phase finished")
	return nil
}

// runEpisode разыгрывает один бой: скриптовые рыцари против обучаемых
// гоблинов. Политика подключена и решателем, и приемником кадров.
func (t *Trainer) runEpisode(cfg *config.Settings) (*api.BattleResult, error) {
	knightAI := ai.NewKnightAI(mrand.New(mrand.NewSource(cfg.Seed)))

	sinks := append([]engine.Sink{t.policy}, t.sinks...)
	battle, err := engine.NewBattle(cfg, knightAI, t.policy, sinks...)
	if err != nil {
		return nil, err
	}
	return battle.Run()
}

// EvalResult - итоги оценочной серии.
type EvalResult struct {
	Battles    int
	KnightWins int
	GoblinWins int
	Stalemates int
	AvgTurns   float64
}

// Evaluate гоняет серию боев с жадной политикой (без исследования и
// без обучения) и считает счет.
func (t *Trainer) Evaluate(battles int) (*EvalResult, error) {
	policy, err := NewPolicy(t.agent, "", false)
	if err != nil {
		return nil, err
	}

	t.log.WithFields(logrus.Fields{"battles": battles}).Info("Evaluation started")
	bar := progressbar.Default(int64(battles), "eval")

	res := &EvalResult{Battles: battles}
	totalTurns := 0

	for i := 0; i < battles; i++ {
		cfg := t.cfg
		cfg.Seed = t.cfg.Seed + int64(i)

		knightAI := ai.NewKnightAI(mrand.New(mrand.NewSource(cfg.Seed)))
		battle, err := engine.NewBattle(&cfg, knightAI, policy)
		if err != nil {
			return nil, err
		}
		result, err := battle.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to run evaluation battle %d: %w", i, err)
		}

		switch result.Outcome {
		case domain.OutcomeKnightsWin.String():
			res.KnightWins++
		case domain.OutcomeGoblinsWin.String():
			res.GoblinWins++
		default:
			res.Stalemates++
		}
		totalTurns += result.Turns

		bar.Add(1)
	}

	if battles > 0 {
		res.AvgTurns = float64(totalTurns) / float64(battles)
	}

	t.log.WithFields(logrus.Fields{
		"knights":    res.KnightWins,
		"goblins":    res.GoblinWins,
		"stalemates": res.Stalemates,
		"avg_turns":  res.AvgTurns,
	}).Info("Evaluation finished")
	return res, nil
}

// ensureMetrics лениво создает каталог запуска и журнал метрик.
func (t *Trainer) ensureMetrics() (*csv.Writer, error) {
	if t.metrics != nil {
		return t.metrics, nil
	}

	if err := os.MkdirAll(t.runDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	f, err := os.Create(filepath.Join(t.runDir, "metrics.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics file: %w", err)
	}

	w := csv.NewWriter(f)
	header := []string{"episode", "phase", "turns", "outcome", "reward", "epsilon", "transitions", "knights_alive", "goblins_alive", "seed"}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write metrics header: %w", err)
	}

	t.metricsFile = f
	t.metrics = w
	return w, nil
}

// saveCheckpoint пишет веса и статистику в каталог моделей.
func (t *Trainer) saveCheckpoint(name string) error {
	dir := t.cfg.Training.CheckpointDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := t.agent.Save(path); err != nil {
		return err
	}

	t.log.WithFields(logrus.Fields{
		"checkpoint": path,
		"episode":    t.agent.Episode(),
	}).Info("Checkpoint saved")
	return nil
}
