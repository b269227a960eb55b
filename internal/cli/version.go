package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X github.com/roach88/drel/internal/cli.Version=...".
var Version = "dev"

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print the drel version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			if formatter.JSON() {
				return formatter.Success(map[string]string{"version": Version, "go": runtime.Version()})
			}
			fmt.Fprintf(formatter.Writer, "drel %s (%s)\n", Version, runtime.Version())
			return nil
		},
	}
}
