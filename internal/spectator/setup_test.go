package spectator

import (
	"os"
	"testing"

	"github.com/mikkokallio/goblin-tactics/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}
