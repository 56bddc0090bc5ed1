package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "repofactor",
	Short: "repofactor — automated repository integration",
	Long: `repofactor integrates a GitHub repository against your instructions through
a fixed agent pipeline: analysis, implementation, research-driven retries,
and a final diff.

All state is stored in ~/.repofactor/ (SQLite for the event log, JSON for
run state and per-stage artifacts).`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(serveCmd)
}
