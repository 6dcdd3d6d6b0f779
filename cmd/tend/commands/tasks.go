package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/ui/style"
)

func (c *CLI) newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the configured tasks and watch rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.app.Tasks(cmd.Context(), c.opts)
			if err != nil {
				return err
			}
			return printTasks(cmd.OutOrStdout(), cfg)
		},
	}
}

func printTasks(w io.Writer, cfg *domain.TaskConfig) error {
	var b strings.Builder

	width := 0
	for t := range cfg.Tasks() {
		width = max(width, len(t.Name))
	}
	for _, r := range cfg.WatchRules() {
		width = max(width, len(r.Name))
	}

	b.WriteString(style.Heading.Render("Tasks"))
	b.WriteByte('\n')
	for t := range cfg.Tasks() {
		b.WriteString("  ")
		b.WriteString(style.TaskName.Render(pad(t.Name, width)))
		if t.Description != "" {
			b.WriteString("  ")
			b.WriteString(style.Description.Render(t.Description))
		}
		if t.IsComposite() {
			b.WriteString("  ")
			b.WriteString(style.Steps.Render(strings.Join(t.Steps, " "+style.Arrow+" ")))
		} else {
			b.WriteString("  ")
			b.WriteString(style.Steps.Render("[" + t.Handler + "]"))
		}
		b.WriteByte('\n')
	}

	if rules := cfg.WatchRules(); len(rules) > 0 {
		b.WriteByte('\n')
		b.WriteString(style.Heading.Render("Watch rules"))
		b.WriteByte('\n')
		for _, r := range rules {
			b.WriteString("  ")
			b.WriteString(style.TaskName.Render(pad(r.Name, width)))
			b.WriteString("  ")
			b.WriteString(style.Description.Render(strings.Join(r.Patterns, ", ")))
			b.WriteString("  ")
			b.WriteString(style.Steps.Render(style.Arrow + " " + strings.Join(r.Tasks, ", ")))
			b.WriteByte('\n')
		}
	}

	if def := cfg.Default(); def != "" {
		b.WriteByte('\n')
		b.WriteString("Default: ")
		b.WriteString(style.TaskName.Render(def))
		b.WriteByte('\n')
	}

	_, err := fmt.Fprint(w, b.String())
	return err
}

func pad(s string, width int) string {
	if n := width - len(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
