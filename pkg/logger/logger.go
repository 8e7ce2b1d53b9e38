// Пакет logger держит глобальный структурный логгер приложения.
// Все пакеты пишут через logger.Log с полем component, поэтому поток
// любого компонента легко отфильтровать.
package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log - глобальный экземпляр логгера для всего приложения.
var Log *logrus.Logger

// Init инициализирует глобальный логгер. Вызывается один раз при
// старте процесса (main или TestMain).
//
// Уровень берется из LOG_LEVEL (по умолчанию info), формат - из
// LOG_FORMAT: "json" для сбора логов, иначе текст с цветами.
func Init() {
	Log = logrus.New()

	logLevel, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		logLevel = "info"
	}
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
	}

	// Кадры рендерера занимают stdout, логи уходят в stderr,
	// чтобы не рвать картинку боя.
	Log.SetOutput(os.Stderr)
}

// SetLevel переопределяет уровень логирования поверх LOG_LEVEL.
// Флаг --log-level командной строки проходит через эту функцию.
func SetLevel(name string) error {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("unknown log level %q: %w", name, err)
	}
	Log.SetLevel(level)
	return nil
}
