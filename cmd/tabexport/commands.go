package main

import (
	"os"
	"path"

	"github.com/spf13/cobra"
)

// newRootCommand builds the base CLI command that all subcommands are added to.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           path.Base(os.Args[0]),
		Short:         "Export tables to CSV",
		Long:          "Render a table to CSV on all available cores while keeping rows in their original order.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newExportCommand())
	return root
}
