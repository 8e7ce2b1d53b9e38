package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikkokallio/goblin-tactics/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build identity",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
