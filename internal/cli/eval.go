package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikkokallio/goblin-tactics/internal/trainer"
)

// newEvalCmd - оценка обученной политики без исследования и обучения.
func newEvalCmd(opts *rootOptions) *cobra.Command {
	var (
		model   string
		battles int
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score a trained policy over a battle series",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.settings()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			tr, err := trainer.NewTrainer(cfg)
			if err != nil {
				return err
			}
			// Без чекпойнта оценивается необученная сеть - полезная
			// нижняя планка для сравнения.
			if model != "" {
				if err := tr.Resume(model); err != nil {
					return err
				}
			}

			res, err := tr.Evaluate(battles)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Battles:    %d\n", res.Battles)
			fmt.Fprintf(out, "Knights:    %d\n", res.KnightWins)
			fmt.Fprintf(out, "Goblins:    %d\n", res.GoblinWins)
			fmt.Fprintf(out, "Stalemates: %d\n", res.Stalemates)
			fmt.Fprintf(out, "Avg turns:  %.1f\n", res.AvgTurns)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&model, "model", "", "checkpoint file with trained weights")
	fl.IntVar(&battles, "battles", 20, "number of evaluation battles")
	return cmd
}
