package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  noArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(opts.Stdout, "arcfg %s (commit: %s, built: %s)\n", opts.Build.Version, opts.Build.Commit, opts.Build.Date)
		},
	}
}
