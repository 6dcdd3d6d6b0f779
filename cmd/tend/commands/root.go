// Package commands implements the CLI commands for the tend task runner.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/tend/internal/app"
	"go.trai.ch/tend/internal/build"
	"go.trai.ch/tend/internal/core/domain"
)

// Application is the behaviour the CLI drives.
type Application interface {
	Run(ctx context.Context, taskNames []string, opts app.Options) error
	Watch(ctx context.Context, ruleNames []string, opts app.Options) error
	Tasks(ctx context.Context, opts app.Options) (*domain.TaskConfig, error)
}

// CLI represents the command line interface for tend.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
	opts    app.Options
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	c := &CLI{app: a}

	rootCmd := &cobra.Command{
		Use:           "tend",
		Short:         "A declarative build and watch task runner",
		Long:          "tend runs the tasks declared in a task file. Without arguments it runs the default task.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Run(cmd.Context(), nil, c.opts)
		},
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.SetVersionTemplate(versionLine() + "\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.opts.Config, "config", "c", "", "Task file, or a directory to search upwards from")
	flags.StringVar(&c.opts.LogFormat, "log-format", "", "Log format: auto, pretty or json")
	flags.BoolVarP(&c.opts.Verbose, "verbose", "v", false, "Enable debug logging")

	c.rootCmd = rootCmd

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newWatchCmd())
	rootCmd.AddCommand(c.newTasksCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects command output. Used for testing.
func (c *CLI) SetOutput(stdout, stderr io.Writer) {
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)
}
