package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repofactor/repofactor/internal/analytics"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Aggregate statistics across recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := openDB()
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := analytics.BuildReport(d)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd, report)
		}

		w := cmd.OutOrStdout()
		if len(report.Outcomes) == 0 {
			fmt.Fprintln(w, "No recorded runs.")
			return nil
		}

		fmt.Fprintln(w, "Outcomes:")
		fmt.Fprintf(w, "  %-16s %-6s %s\n", "OUTCOME", "RUNS", "AVG RETRIES")
		for _, oc := range report.Outcomes {
			fmt.Fprintf(w, "  %-16s %-6d %.1f\n", oc.Outcome, oc.Runs, oc.AvgRetries)
		}

		if len(report.Agents) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Agents:")
			fmt.Fprintf(w, "  %-16s %-7s %-10s %-8s %s\n", "AGENT", "CALLS", "SUCCESSES", "RATE", "AVG MS")
			for _, a := range report.Agents {
				rate := fmt.Sprintf("%.1f%%", a.SuccessRate)
				fmt.Fprintf(w, "  %-16s %-7d %-10d %-8s %.0f\n",
					a.Agent, a.Calls, a.Successes, rate, a.AvgDurationMs)
			}
		}

		fmt.Fprintln(w)
		fmt.Fprintf(w, "Research: %d cycles, %d recovered (%.1f%% effective)\n",
			report.Research.Cycles, report.Research.Recovered, report.Research.Effectiveness)
		return nil
	},
}

// writeJSON prints v as indented JSON on the command's stdout.
func writeJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func init() {
	analyticsCmd.Flags().String("format", "text", "Output format: text or json")
}
