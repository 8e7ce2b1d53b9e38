package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikkokallio/goblin-tactics/internal/render"
	"github.com/mikkokallio/goblin-tactics/internal/server"
	"github.com/mikkokallio/goblin-tactics/internal/storage"
)

// newReplayCmd - воспроизведение записанного боя.
func newReplayCmd(opts *rootOptions) *cobra.Command {
	var (
		delay   time.Duration
		noColor bool
		serve   bool
		addr    string
	)

	cmd := &cobra.Command{
		Use:   "replay [battle]",
		Short: "Play back a recorded battle in the terminal or over websocket",
		Long: `Plays a recorded battle. The argument is either a file name inside
the replay store or a direct path to a .gtrp file; without it the most
recent recording is chosen. With --serve the recording is streamed to
websocket spectators instead of the local terminal.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.settings()
			if err != nil {
				return err
			}
			// Темп по умолчанию берется из настроек сервера.
			if !cmd.Flags().Changed("delay") {
				delay = cfg.Server.TurnDelay
			}

			store, err := storage.NewStore(cfg.Replay.Dir)
			if err != nil {
				return err
			}

			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			if serve {
				if strings.ContainsAny(name, `/\`) {
					return fmt.Errorf("serving needs a file inside the replay store, got path %s", name)
				}
				if name == "" {
					if name, err = store.Latest(); err != nil {
						return err
					}
				}
				if addr != "" {
					cfg.Server.Addr = addr
				}
				cfg.Server.TurnDelay = delay

				srv := server.New(cfg.Server, nil, store)
				srv.SetDefaultBattle(name)
				return srv.Run()
			}

			r := render.New(render.Options{
				Out:      cmd.OutOrStdout(),
				Delay:    delay,
				Colors:   !noColor,
				Clear:    delay > 0,
				LogLines: 8,
			})

			// Имя с разделителем пути - файл вне хранилища.
			if strings.ContainsAny(name, `/\`) {
				reader, err := storage.Open(name)
				if err != nil {
					return err
				}
				defer reader.Close()
				return reader.Replay(r)
			}

			if name == "" {
				if name, err = store.Latest(); err != nil {
					return err
				}
			}
			reader, err := store.Open(name)
			if err != nil {
				return err
			}
			defer reader.Close()
			return reader.Replay(r)
		},
	}

	fl := cmd.Flags()
	fl.DurationVar(&delay, "delay", 150*time.Millisecond, "pause between turns")
	fl.BoolVar(&noColor, "no-color", false, "plain ASCII output")
	fl.BoolVar(&serve, "serve", false, "stream the recording to websocket spectators")
	fl.StringVar(&addr, "addr", "", "listen address for --serve (default from config)")
	return cmd
}
