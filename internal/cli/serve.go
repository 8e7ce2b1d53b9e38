package cli

import (
	"context"
	mrand "math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mikkokallio/goblin-tactics/internal/ai"
	"github.com/mikkokallio/goblin-tactics/internal/config"
	"github.com/mikkokallio/goblin-tactics/internal/engine"
	"github.com/mikkokallio/goblin-tactics/internal/network"
	"github.com/mikkokallio/goblin-tactics/internal/server"
	"github.com/mikkokallio/goblin-tactics/internal/storage"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
	"github.com/mikkokallio/goblin-tactics/pkg/logger"
)

// newServeCmd - сервер трансляции: гоняет бои и вещает их зрителям,
// параллельно отдавая архив записей по команде WATCH.
func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr    string
		battles int
		record  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Broadcast live battles to websocket spectators",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.settings()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if record {
				cfg.Replay.Enabled = true
			}

			store, err := storage.NewStore(cfg.Replay.Dir)
			if err != nil {
				return err
			}

			hub := network.NewBroadcaster()
			srv := server.New(cfg.Server, hub, store)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				if err := srv.Run(); err != nil {
					logger.Log.Fatal("Server start error:", err)
				}
			}()

			go runBattleSeries(ctx, cfg, hub, store, battles)

			<-ctx.Done()
			logger.Log.Info("Shutting down...")
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&addr, "addr", "", "listen address override (default from config)")
	fl.IntVar(&battles, "battles", 0, "battles to play before idling, 0 means endless")
	fl.BoolVar(&record, "record", false, "also write broadcast battles to the replay store")
	return cmd
}

// runBattleSeries крутит живые бои до отмены контекста. Зерно каждого
// следующего боя выводится из мастер-зерна, так что серия целиком
// воспроизводима.
func runBattleSeries(ctx context.Context, cfg config.Settings, hub *network.Broadcaster, store *storage.Store, battles int) {
	log := logger.Log.WithFields(logrus.Fields{"component": "serve"})

	feed := network.NewFeed(hub)

	var rec *storage.Recorder
	if cfg.Replay.Enabled {
		rec = store.Recorder()
	}

	for i := 0; battles <= 0 || i < battles; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		bcfg := cfg
		bcfg.Seed = cfg.Seed + int64(i)

		sinks := []engine.Sink{pacer{Sink: feed, delay: cfg.Server.TurnDelay, done: ctx.Done()}}
		if rec != nil {
			sinks = append(sinks, rec)
		}

		knight := ai.NewKnightAI(mrand.New(mrand.NewSource(bcfg.Seed)))
		goblin := ai.NewGoblinAI(mrand.New(mrand.NewSource(bcfg.Seed + 1)))

		battle, err := engine.NewBattle(&bcfg, knight, goblin, sinks...)
		if err != nil {
			log.WithError(err).Error("Failed to build battle")
			return
		}
		if _, err := battle.Run(); err != nil {
			log.WithError(err).Error("Battle aborted")
			return
		}

		// Пауза между боями, чтобы зрители увидели итоговый кадр.
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}

	if rec != nil {
		if err := rec.Close(); err != nil {
			log.WithError(err).Warn("Failed to close recorder")
		}
	}
	log.WithFields(logrus.Fields{"battles": battles}).Info("Battle series finished, archive remains available")
}

// pacer притормаживает живой бой до темпа трансляции: без него серия
// ходов пролетает быстрее, чем зритель успевает их разглядеть.
type pacer struct {
	engine.Sink
	delay time.Duration
	done  <-chan struct{}
}

func (p pacer) OnTurn(f *api.TurnFrame) error {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-p.done:
		}
	}
	return p.Sink.OnTurn(f)
}
