package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mikkokallio/goblin-tactics/internal/storage"
	"github.com/mikkokallio/goblin-tactics/internal/trainer"
)

// newTrainCmd - обучение политики гоблинов.
func newTrainCmd(opts *rootOptions) *cobra.Command {
	var (
		episodes   int
		resume     string
		curriculum bool
		record     bool
		runDir     string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the goblin policy against scripted knights",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.settings()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if record {
				cfg.Replay.Enabled = true
			}

			tr, err := trainer.NewTrainer(cfg)
			if err != nil {
				return err
			}
			defer tr.Close()

			if runDir != "" {
				tr.SetRunDir(runDir)
			}
			if resume != "" {
				if err := tr.Resume(resume); err != nil {
					return err
				}
			}

			if cfg.Replay.Enabled {
				store, err := storage.NewStore(cfg.Replay.Dir)
				if err != nil {
					return err
				}
				rec := store.Recorder()
				defer rec.Close()
				tr.AddSink(rec)

				exp, err := storage.NewExperienceWriter(cfg.Replay.ExperienceDir)
				if err != nil {
					return err
				}
				tr.AddSink(exp)
				// Каждый закрытый переход уходит в файл опыта эпизода.
				tr.Policy().OnTransition = func(unitID int, tn trainer.Transition) {
					exp.Add(unitID, tn.State, tn.Action, tn.Reward, tn.Next, tn.Done)
				}
			}

			if curriculum {
				if episodes <= 0 {
					episodes = cfg.Training.Episodes
				}
				// Бюджет эпизодов делится поровну: арена учит драться,
				// подземелье - добираться до драки.
				arena := episodes / 2
				if err := tr.TrainCurriculum(arena, episodes-arena); err != nil {
					return err
				}
			} else if err := tr.Train(episodes); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Metrics: %s\n", filepath.Join(tr.RunDir(), "metrics.csv"))
			fmt.Fprintf(out, "Checkpoints: %s\n", cfg.Training.CheckpointDir)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&episodes, "episodes", 0, "episodes to run, 0 uses the configured count")
	fl.StringVar(&resume, "resume", "", "checkpoint file to continue training from")
	fl.BoolVar(&curriculum, "curriculum", false, "two-phase training: arena first, then dungeon")
	fl.BoolVar(&record, "record", false, "record training battles and experience dumps")
	fl.StringVar(&runDir, "run-dir", "", "metrics directory (default runs/<timestamp>)")
	return cmd
}
