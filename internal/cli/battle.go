package cli

import (
	"fmt"
	mrand "math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikkokallio/goblin-tactics/internal/ai"
	"github.com/mikkokallio/goblin-tactics/internal/engine"
	"github.com/mikkokallio/goblin-tactics/internal/render"
	"github.com/mikkokallio/goblin-tactics/internal/storage"
)

// newBattleCmd - одиночный бой скриптовых фракций.
func newBattleCmd(opts *rootOptions) *cobra.Command {
	var (
		doRender bool
		record   bool
		delay    time.Duration
		noColor  bool
		grail    bool
		arena    bool
	)

	cmd := &cobra.Command{
		Use:   "battle",
		Short: "Run a single battle between the scripted factions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.settings()
			if err != nil {
				return err
			}
			if grail {
				cfg.GrailMode = true
			}
			if arena {
				cfg.Map.Arena = true
			}

			var sinks []engine.Sink
			if doRender {
				sinks = append(sinks, render.New(render.Options{
					Out:    cmd.OutOrStdout(),
					Delay:  delay,
					Colors: !noColor,
					// Без паузы очистка экрана превращает вывод
					// в мигание - кадры просто идут друг за другом.
					Clear: delay > 0,
				}))
			}

			var rec *storage.Writer
			if record || cfg.Replay.Enabled {
				store, err := storage.NewStore(cfg.Replay.Dir)
				if err != nil {
					return err
				}
				rec, err = store.NewWriter()
				if err != nil {
					return err
				}
				sinks = append(sinks, rec)
			}

			knight := ai.NewKnightAI(mrand.New(mrand.NewSource(cfg.Seed)))
			goblin := ai.NewGoblinAI(mrand.New(mrand.NewSource(cfg.Seed + 1)))

			battle, err := engine.NewBattle(&cfg, knight, goblin, sinks...)
			if err != nil {
				return err
			}
			result, err := battle.Run()
			if rec != nil {
				if cerr := rec.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Outcome: %s after %d turns (seed %d)\n", result.Outcome, result.Turns, result.Seed)
			fmt.Fprintf(out, "Survivors: knights %d, goblins %d\n", result.KnightsAlive, result.GoblinsAlive)
			if rec != nil {
				fmt.Fprintf(out, "Recording: %s\n", rec.Path())
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&doRender, "render", false, "draw every turn in the terminal")
	fl.BoolVar(&record, "record", false, "write the battle to the replay store")
	fl.DurationVar(&delay, "delay", 0, "pause between rendered turns")
	fl.BoolVar(&noColor, "no-color", false, "plain ASCII output")
	fl.BoolVar(&grail, "grail", false, "grail hunt: knights must extract the artifact")
	fl.BoolVar(&arena, "arena", false, "single open arena instead of a dungeon")
	return cmd
}
