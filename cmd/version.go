package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// newVersionCmd creates the command that reports the gateway build.
func newVersionCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the estategate gateway version",
		Long: `Prints the version of the estategate gateway binary. Include it when
reporting token refresh or relay problems; with --verbose the Go toolchain
and platform the binary was built for are printed as well.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "estategate version %s\n", rootCmd.Version)
			if verbose {
				fmt.Fprintf(out, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			}
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also print the Go version and platform")
	return cmd
}
