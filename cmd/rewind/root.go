package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rewind",
		Short: "rewind runs scripted edits with transactional undo/redo",
		Long: `rewind executes Lua scripts against a scene of shapes, layers and tags.
Every edit is recorded in an undo/redo history that scripts can walk
through the history module.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to a TOML or YAML configuration file")
	root.PersistentFlags().String("log-level", "", "Override the log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}
