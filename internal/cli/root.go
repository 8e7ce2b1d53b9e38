// Пакет cli собирает команды терминального интерфейса симулятора:
// одиночные бои, обучение и оценка политики, воспроизведение записей,
// сервер трансляции и удаленный просмотр.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mikkokallio/goblin-tactics/internal/config"
	"github.com/mikkokallio/goblin-tactics/pkg/logger"
)

// rootOptions - флаги, общие для всех команд.
type rootOptions struct {
	configFile string
	logLevel   string
	seed       int64
	seedName   string
}

// envKeys - ключи настроек, доступные через окружение GT_*:
// GT_SEED, GT_SERVER_ADDR, GT_TRAINING_EPISODES и так далее.
var envKeys = []string{
	"seed", "seed_name", "max_turns", "grail_mode",
	"server.addr", "server.turn_delay",
	"replay.enabled", "replay.dir", "replay.experience_dir",
	"training.episodes", "training.checkpoint_dir", "training.reward_expr",
}

// NewRootCmd собирает дерево команд. Отдельно от Execute, чтобы тесты
// могли выполнять команды с подменой вывода и аргументов.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "goblintactics",
		Short: "Deterministic knights-versus-goblins battle simulator",
		Long: `Goblin Tactics is a deterministic turn-based battle simulator:
scripted knights sweep a generated dungeon while goblins are driven by
scripts or a trained policy. Battles can be rendered in the terminal,
recorded, replayed, broadcast to websocket spectators and used to
train the goblin policy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if logger.Log == nil {
				logger.Init()
			}
			if opts.logLevel != "" {
				return logger.SetLevel(opts.logLevel)
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default ./config.yaml or ~/.goblintactics/config.yaml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "override log level: debug, info, warn, error")
	pf.Int64Var(&opts.seed, "seed", 0, "master seed override, 0 keeps the configured seed")
	pf.StringVar(&opts.seedName, "seed-name", "", "named seed, hashed into a number")

	cmd.AddCommand(
		newBattleCmd(opts),
		newTrainCmd(opts),
		newEvalCmd(opts),
		newReplayCmd(opts),
		newServeCmd(opts),
		newWatchCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute запускает корневую команду процесса.
func Execute() {
	if logger.Log == nil {
		logger.Init()
	}
	if err := NewRootCmd().Execute(); err != nil {
		logger.Log.Fatal(err)
	}
}

// settings собирает конфигурацию запуска: значения по умолчанию,
// поверх них YAML-файл, поверх файла окружение GT_*, поверх всего -
// флаги командной строки.
func (o *rootOptions) settings() (config.Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("GT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return config.Default(), fmt.Errorf("failed to bind env key %s: %w", key, err)
		}
	}

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".goblintactics"))
		}
	}

	s := config.Default()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Файл, указанный явно, обязан существовать. Файл из путей
		// поиска - нет: без него работают значения по умолчанию.
		if o.configFile != "" || !errors.As(err, &notFound) {
			return s, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(&s, func(dc *mapstructure.DecoderConfig) {
		// Документ настроек описан yaml-тегами.
		dc.TagName = "yaml"
	}); err != nil {
		return s, fmt.Errorf("failed to parse config: %w", err)
	}

	// Флаги старше файла и окружения. Явное число затирает именованное
	// зерно: --seed 42 должен победить seed_name из файла.
	if o.seed != 0 {
		s.Seed = o.seed
		s.SeedName = ""
	}
	if o.seedName != "" {
		s.SeedName = o.seedName
	}
	s.ResolveSeed()

	return s, nil
}
