package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [rules...]",
		Short: "Watch files and run the tasks of matching rules",
		Long:  "Watch starts every configured watch rule, or only the named ones, and runs until interrupted.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Watch(cmd.Context(), args, c.opts)
		},
	}
}
