package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/tend/internal/build"
)

func versionLine() string {
	return fmt.Sprintf("tend version %s (commit %s, built %s)", build.Version, build.Commit, build.Date)
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionLine())
		},
	}
}
