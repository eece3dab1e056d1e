package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chainguard-sentinel/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "sentinel %s (commit %s, built %s)\n", version.Version, version.Commit, version.BuildDate)
	},
}
