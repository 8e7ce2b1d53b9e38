package trainer

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/exp/rand"

	"github.com/mikkokallio/goblin-tactics/internal/config"
	"github.com/mikkokallio/goblin-tactics/internal/engine"
)

// Agent - DQN-агент: онлайн-сеть, целевая сеть, буфер опыта и
// эпсилон-жадная стратегия. Вся случайность агента идет через один
// генератор, который сеется тренером: серия эпизодов воспроизводима.
type Agent struct {
	q      *Network
	target *Network
	memory *ReplayBuffer
	rng    *rand.Rand

	gamma        float64
	epsilon      float64
	epsilonMin   float64
	epsilonDecay float64
	lr           float64
	batchSize    int
	targetUpdate int

	episode    int
	totalSteps int
}

// NewAgent собирает агента под заданные размеры состояния и словаря
// действий. Целевая сеть стартует копией онлайн-сети.
func NewAgent(stateSize, actionSize int, cfg config.TrainingSettings, rng *rand.Rand) *Agent {
	q := NewNetwork(stateSize, cfg.HiddenLayers, actionSize, rng)
	target := NewNetwork(stateSize, cfg.HiddenLayers, actionSize, rng)
	target.CopyFrom(q)

	return &Agent{
		q:      q,
		target: target,
		memory: NewReplayBuffer(cfg.MemorySize),
		rng:    rng,

		gamma:        cfg.Gamma,
		epsilon:      cfg.EpsilonStart,
		epsilonMin:   cfg.EpsilonEnd,
		epsilonDecay: cfg.EpsilonDecay,
		lr:           cfg.LearningRate,
		batchSize:    cfg.BatchSize,
		targetUpdate: cfg.TargetUpdate,
	}
}

// Act выбирает действие эпсилон-жадно. В режиме обучения с
// вероятностью epsilon берется случайное действие, иначе argmax
// Q-значений. Вектор чужой длины - это политика с другой версии схемы
// наблюдений, работать с ней нельзя.
func (a *Agent) Act(state []float64, training bool) (int, error) {
	if len(state) != a.q.InputSize() {
		return 0, fmt.Errorf("feature vector has %d values, network expects %d: %w",
			len(state), a.q.InputSize(), engine.ErrSchemaMismatch)
	}

	if training && a.rng.Float64() < a.epsilon {
		return a.rng.Intn(a.q.OutputSize()), nil
	}
	return argmax(a.q.Predict(state)), nil
}

// Remember кладет переход в буфер опыта.
func (a *Agent) Remember(t Transition) {
	a.memory.Add(t)
}

// TrainStep делает один шаг обучения на случайной выборке из буфера.
// Пока опыта меньше размера пакета, шаг пропускается.
func (a *Agent) TrainStep() {
	if a.memory.Len() < a.batchSize {
		return
	}

	batch := a.memory.Sample(a.batchSize, a.rng)

	states := make([][]float64, len(batch))
	nexts := make([][]float64, len(batch))
	for i, t := range batch {
		states[i] = t.State
		nexts[i] = t.Next
	}

	current := a.q.Forward(states)
	future := a.target.Forward(nexts)

	// Цель Беллмана: r для терминальных переходов, r + gamma*maxQ' для
	// остальных. Градиент MSE идет только через выбранное действие.
	grad := make([][]float64, len(batch))
	for i, t := range batch {
		row := make([]float64, len(current[i]))
		target := t.Reward
		if !t.Done {
			target += a.gamma * maxOf(future[i])
		}
		row[t.Action] = 2 * (current[i][t.Action] - target) / float64(len(batch))
		grad[i] = row
	}

	a.q.Backward(grad, a.lr)
	a.totalSteps++
}

// EndEpisode закрывает эпизод: периодически синхронизирует целевую
// сеть и затухает epsilon.
func (a *Agent) EndEpisode() {
	a.episode++
	if a.episode%a.targetUpdate == 0 {
		a.target.CopyFrom(a.q)
	}
	a.epsilon = a.epsilon * a.epsilonDecay
	if a.epsilon < a.epsilonMin {
		a.epsilon = a.epsilonMin
	}
}

// Epsilon возвращает текущую вероятность случайного действия.
func (a *Agent) Epsilon() float64 { return a.epsilon }

// Episode возвращает число закрытых эпизодов.
func (a *Agent) Episode() int { return a.episode }

// TotalSteps возвращает число выполненных шагов обучения.
func (a *Agent) TotalSteps() int { return a.totalSteps }

// BufferLen возвращает заполненность буфера опыта.
func (a *Agent) BufferLen() int { return a.memory.Len() }

// trainStats - прогресс обучения, сохраняемый рядом с весами.
type trainStats struct {
	Episode    int     `json:"episode"`
	Epsilon    float64 `json:"epsilon"`
	TotalSteps int     `json:"total_steps"`
}

// statsPath выводит имя файла статистики из имени чекпойнта:
// model.json -> model_stats.json.
func statsPath(path string) string {
	return strings.TrimSuffix(path, ".json") + "_stats.json"
}

// Save пишет веса онлайн-сети и файл статистики рядом.
func (a *Agent) Save(path string) error {
	if err := a.q.Save(path); err != nil {
		return err
	}

	data, err := json.Marshal(trainStats{
		Episode:    a.episode,
		Epsilon:    a.epsilon,
		TotalSteps: a.totalSteps,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal training stats: %w", err)
	}
	if err := os.WriteFile(statsPath(path), data, 0o644); err != nil {
		return fmt.Errorf("failed to write training stats: %w", err)
	}
	return nil
}

// Load читает веса чекпойнта в обе сети и, если рядом лежит файл
// статистики, восстанавливает прогресс обучения. Отсутствие
// статистики не ошибка: чистый eval работает по одним весам.
func (a *Agent) Load(path string) error {
	if err := a.q.Load(path); err != nil {
		return err
	}
	a.target.CopyFrom(a.q)

	data, err := os.ReadFile(statsPath(path))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read training stats: %w", err)
	}

	var stats trainStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return fmt.Errorf("failed to parse training stats: %w", err)
	}
	a.episode = stats.Episode
	a.epsilon = stats.Epsilon
	a.totalSteps = stats.TotalSteps
	return nil
}

// argmax возвращает индекс максимума (при равенстве - меньший индекс,
// чтобы жадный выбор был детерминированным).
func argmax(v []float64) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}

func maxOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
