package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree; each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cogctl",
		Short: "Operator tools for the cog bot",
		Long: `cogctl runs pieces of the cog bot outside Discord.

Use it to preview how a response is split into messages or to run a single
availability check against a page.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newSplitCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}
