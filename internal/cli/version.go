package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Overridden at build time via -ldflags "-X .../internal/cli.version=...".
var (
	version = "0.1.0"
	commit  = "unknown"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("trustgate %s (commit %s, %s)\n", version, commit, runtime.Version())
	},
}
