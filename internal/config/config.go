package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mikkokallio/goblin-tactics/pkg/utils"
)

// FactionSettings описывает параметры юнитов одной фракции.
// Count и HP задаются диапазонами: реальное число гоблинов и здоровье
// каждого юнита разыгрываются из зерна боя.
type FactionSettings struct {
	CountMin  int `yaml:"count_min"`
	CountMax  int `yaml:"count_max"`
	HPMin     int `yaml:"hp_min"`
	HPMax     int `yaml:"hp_max"`
	DamageMin int `yaml:"damage_min"`
	DamageMax int `yaml:"damage_max"`
	// Speed определяет порядок инициативы: быстрые ходят первыми.
	Speed int `yaml:"speed"`
	// VisionRange - радиус обзора в клетках (евклидова метрика).
	VisionRange int `yaml:"vision_range"`
}

// StormSettings - параметры сжимающейся безопасной зоны.
type StormSettings struct {
	Enabled bool `yaml:"enabled"`
	// Damage - урон за ход каждому юниту вне зоны.
	Damage int `yaml:"damage"`
	// StartTurn - ход, начиная с которого зона сжимается.
	StartTurn int `yaml:"start_turn"`
	// ShrinkRate - на сколько клеток радиус уменьшается за ход.
	ShrinkRate float64 `yaml:"shrink_rate"`
	// MinRadius - ниже этого радиуса зона не сжимается.
	MinRadius float64 `yaml:"min_radius"`
}

// MapSettings - параметры генерации поля боя.
type MapSettings struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// Arena: вместо подземелья строится один открытый зал.
	// Используется первой фазой учебной программы.
	Arena bool `yaml:"arena"`
	// DifficultChance - доля пола, засыпанного труднопроходимым завалом.
	DifficultChance float64 `yaml:"difficult_chance"`
	MaxDepth        int     `yaml:"max_depth"`
	MinRoomSize     int     `yaml:"min_room_size"`
	MaxRoomSize     int     `yaml:"max_room_size"`
}

// TrainingSettings - гиперпараметры обучения гоблинов.
type TrainingSettings struct {
	Episodes      int     `yaml:"episodes"`
	Gamma         float64 `yaml:"gamma"`
	EpsilonStart  float64 `yaml:"epsilon_start"`
	EpsilonEnd    float64 `yaml:"epsilon_end"`
	EpsilonDecay  float64 `yaml:"epsilon_decay"`
	LearningRate  float64 `yaml:"learning_rate"`
	BatchSize     int     `yaml:"batch_size"`
	TargetUpdate  int     `yaml:"target_update"`
	MemorySize    int     `yaml:"memory_size"`
	HiddenLayers  []int   `yaml:"hidden_layers"`
	CheckpointDir string  `yaml:"checkpoint_dir"`
	// CheckpointEvery - раз в сколько эпизодов сохранять веса.
	CheckpointEvery int `yaml:"checkpoint_every"`
	// RewardExpr - необязательное CEL-выражение, заменяющее встроенную
	// формулу награды. Пустая строка = встроенная формула.
	RewardExpr string `yaml:"reward_expr"`
}

// ServerSettings - адрес и директории наблюдательного сервера.
type ServerSettings struct {
	Addr string `yaml:"addr"`
	// TurnDelay - пауза между ходами при трансляции записи.
	TurnDelay time.Duration `yaml:"turn_delay"`
}

// ReplaySettings - куда писать записи боёв и опыт.
type ReplaySettings struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	// ExperienceDir - директория для выгрузки переходов (state, action,
	// reward, next_state) в JSON для офлайн-анализа.
	ExperienceDir string `yaml:"experience_dir"`
}

// Settings - полная конфигурация симулятора. Движок получает её
// целиком как обычную структуру: никаких скрытых значений по умолчанию
// внутри движка нет, всё перечислено здесь.
type Settings struct {
	// Seed - мастер-зерно. Зерно боя N выводится как Seed+N,
	// поэтому серия боёв воспроизводима целиком.
	Seed int64 `yaml:"seed"`
	// SeedName - именованное зерно для воспроизводимых экспериментов:
	// непустая строка хешируется в Seed детерминированно.
	SeedName string `yaml:"seed_name"`

	MaxTurns  int  `yaml:"max_turns"`
	GrailMode bool `yaml:"grail_mode"`

	Map      MapSettings      `yaml:"map"`
	Knights  FactionSettings  `yaml:"knights"`
	Goblins  FactionSettings  `yaml:"goblins"`
	Storm    StormSettings    `yaml:"storm"`
	Training TrainingSettings `yaml:"training"`
	Server   ServerSettings   `yaml:"server"`
	Replay   ReplaySettings   `yaml:"replay"`
}

// Default возвращает конфигурацию эталонного сценария:
// пять рыцарей против стаи гоблинов в подземелье 48x32.
func Default() Settings {
	return Settings{
		Seed:      time.Now().UnixNano(),
		MaxTurns:  200,
		GrailMode: false,
		Map: MapSettings{
			Width:           48,
			Height:          32,
			Arena:           false,
			DifficultChance: 0.08,
			MaxDepth:        4,
			MinRoomSize:     5,
			MaxRoomSize:     12,
		},
		Knights: FactionSettings{
			CountMin: 5, CountMax: 5,
			HPMin: 25, HPMax: 35,
			DamageMin: 3, DamageMax: 6,
			Speed:       5,
			VisionRange: 3,
		},
		Goblins: FactionSettings{
			CountMin: 12, CountMax: 18,
			HPMin: 8, HPMax: 12,
			DamageMin: 1, DamageMax: 3,
			Speed:       4,
			VisionRange: 3,
		},
		Storm: StormSettings{
			Enabled:    true,
			Damage:     5,
			StartTurn:  50,
			ShrinkRate: 1,
			MinRadius:  3,
		},
		Training: TrainingSettings{
			Episodes:        200,
			Gamma:           0.99,
			EpsilonStart:    1.0,
			EpsilonEnd:      0.01,
			EpsilonDecay:    0.995,
			LearningRate:    0.001,
			BatchSize:       64,
			TargetUpdate:    10,
			MemorySize:      10000,
			HiddenLayers:    []int{128, 64},
			CheckpointDir:   "models",
			CheckpointEvery: 25,
		},
		Server: ServerSettings{
			Addr:      ":8080",
			TurnDelay: 150 * time.Millisecond,
		},
		Replay: ReplaySettings{
			Enabled:       false,
			Dir:           "data/battles",
			ExperienceDir: "data/experiences",
		},
	}
}

// Load читает YAML-файл поверх значений по умолчанию.
// Отсутствующие ключи сохраняют дефолты, поэтому файл может
// переопределять только то, что нужно эксперименту.
func Load(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	s.ResolveSeed()
	return s, nil
}

// ResolveSeed превращает именованное зерно в числовое.
// Вызывается после любого переопределения полей извне (флаги CLI).
func (s *Settings) ResolveSeed() {
	if s.SeedName != "" {
		s.Seed = utils.StringToSeed(s.SeedName)
	}
}

// Validate проверяет согласованность настроек до начала боя.
// Ошибка конфигурации должна останавливать запуск сразу, а не
// всплывать посреди обучения на тысячном эпизоде.
func (s Settings) Validate() error {
	if s.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be positive, got %d", s.MaxTurns)
	}
	if s.Map.Width < 12 || s.Map.Height < 12 {
		return fmt.Errorf("map %dx%d is too small, need at least 12x12", s.Map.Width, s.Map.Height)
	}
	if s.Map.DifficultChance < 0 || s.Map.DifficultChance > 0.5 {
		return fmt.Errorf("difficult_chance %.2f out of range [0, 0.5]", s.Map.DifficultChance)
	}
	if err := validateFaction("knights", s.Knights); err != nil {
		return err
	}
	if err := validateFaction("goblins", s.Goblins); err != nil {
		return err
	}

	// Зона высадки фракции занимает треть карты. Если юнитов больше,
	// чем клеток в этой полосе, расстановка обречена - лучше узнать сразу.
	spawnCells := (s.Map.Width / 3) * s.Map.Height
	if s.Knights.CountMax > spawnCells || s.Goblins.CountMax > spawnCells {
		return fmt.Errorf("spawn region of %d cells cannot hold requested unit counts", spawnCells)
	}

	if s.Storm.Enabled {
		if s.Storm.Damage <= 0 {
			return fmt.Errorf("storm damage must be positive, got %d", s.Storm.Damage)
		}
		if s.Storm.ShrinkRate <= 0 {
			return fmt.Errorf("storm shrink_rate must be positive, got %g", s.Storm.ShrinkRate)
		}
		if s.Storm.MinRadius < 1 {
			return fmt.Errorf("storm min_radius must be at least 1, got %g", s.Storm.MinRadius)
		}
		startRadius := float64(max(s.Map.Width, s.Map.Height))
		if s.Storm.MinRadius > startRadius {
			return fmt.Errorf("storm min_radius %g exceeds initial radius %g", s.Storm.MinRadius, startRadius)
		}
	}

	if s.GrailMode && s.Map.Arena {
		// Грааль прячется в дальней комнате подземелья, на арене его
		// ставить негде.
		return fmt.Errorf("grail_mode requires dungeon generation, disable arena")
	}

	if err := s.Training.validate(); err != nil {
		return err
	}
	return nil
}

func validateFaction(name string, f FactionSettings) error {
	if f.CountMin <= 0 || f.CountMax < f.CountMin {
		return fmt.Errorf("%s count range [%d, %d] is invalid", name, f.CountMin, f.CountMax)
	}
	if f.HPMin <= 0 || f.HPMax < f.HPMin {
		return fmt.Errorf("%s hp range [%d, %d] is invalid", name, f.HPMin, f.HPMax)
	}
	if f.DamageMin <= 0 || f.DamageMax < f.DamageMin {
		return fmt.Errorf("%s damage range [%d, %d] is invalid", name, f.DamageMin, f.DamageMax)
	}
	if f.Speed <= 0 {
		return fmt.Errorf("%s speed must be positive, got %d", name, f.Speed)
	}
	if f.VisionRange <= 0 {
		return fmt.Errorf("%s vision_range must be positive, got %d", name, f.VisionRange)
	}
	return nil
}

func (t TrainingSettings) validate() error {
	if t.Episodes <= 0 {
		return fmt.Errorf("training episodes must be positive, got %d", t.Episodes)
	}
	if t.Gamma <= 0 || t.Gamma > 1 {
		return fmt.Errorf("gamma %g out of range (0, 1]", t.Gamma)
	}
	if t.EpsilonStart < t.EpsilonEnd {
		return fmt.Errorf("epsilon_start %g below epsilon_end %g", t.EpsilonStart, t.EpsilonEnd)
	}
	if t.EpsilonDecay <= 0 || t.EpsilonDecay > 1 {
		return fmt.Errorf("epsilon_decay %g out of range (0, 1]", t.EpsilonDecay)
	}
	if t.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %g", t.LearningRate)
	}
	if t.BatchSize <= 0 || t.MemorySize < t.BatchSize {
		return fmt.Errorf("memory_size %d cannot be below batch_size %d", t.MemorySize, t.BatchSize)
	}
	if t.TargetUpdate <= 0 {
		return fmt.Errorf("target_update must be positive, got %d", t.TargetUpdate)
	}
	if len(t.HiddenLayers) == 0 {
		return fmt.Errorf("hidden_layers must name at least one layer")
	}
	for i, n := range t.HiddenLayers {
		if n <= 0 {
			return fmt.Errorf("hidden layer %d has invalid size %d", i, n)
		}
	}
	return nil
}
