// Package cli implements the reviewbot command-line interface.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/depreview/reviewbot/pkg/buildinfo"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "reviewbot",
		Short:        "reviewbot reviews Elm packages for unused dependencies and opens pull requests",
		Long:         `reviewbot watches the Elm package registry, flags unused dependencies via a rule engine, and opens pull requests against flagged packages, with an operator console for live oversight.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.resetCommand())
	root.AddCommand(c.statusCommand())
	root.AddCommand(c.monitorCommand())
	root.AddCommand(c.completionCommand())

	return root
}
