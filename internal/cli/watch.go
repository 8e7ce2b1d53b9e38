package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mikkokallio/goblin-tactics/internal/render"
	"github.com/mikkokallio/goblin-tactics/internal/spectator"
)

// newWatchCmd - удаленный зритель: подключается к серверу трансляции
// и рисует бой в местном терминале.
func newWatchCmd() *cobra.Command {
	var (
		url     string
		battle  string
		list    bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a broadcast from a battle server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r := render.New(render.Options{
				Out:      cmd.OutOrStdout(),
				Colors:   !noColor,
				Clear:    true,
				LogLines: 8,
			})
			c := spectator.New(url, r)

			if list {
				names, err := c.ListBattles(ctx)
				if err != nil {
					return err
				}
				if len(names) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no recordings on the server")
					return nil
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			var err error
			// --battle "" означает самую свежую запись, отсутствие
			// флага - живую трансляцию.
			if cmd.Flags().Changed("battle") {
				err = c.WatchReplay(ctx, battle)
			} else {
				err = c.Watch(ctx)
			}
			if errors.Is(err, context.Canceled) {
				// ^C зрителя - штатный выход.
				return nil
			}
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&url, "url", "localhost:8080", "server address")
	fl.StringVar(&battle, "battle", "", "recording to replay instead of the live feed")
	fl.BoolVar(&list, "list", false, "print the server's recordings and exit")
	fl.BoolVar(&noColor, "no-color", false, "plain ASCII output")
	return cmd
}
