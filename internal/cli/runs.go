package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded integration runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := defaultStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		statusFilter, _ := cmd.Flags().GetString("status")
		runs, err := store.List(statusFilter)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd, runs)
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-38s %-12s %-24s %-6s %s\n", "RUN", "STATUS", "STAGE", "RETRY", "REPO")
		fmt.Fprintf(w, "%-38s %-12s %-24s %-6s %s\n",
			strings.Repeat("-", 38),
			strings.Repeat("-", 12),
			strings.Repeat("-", 24),
			strings.Repeat("-", 6),
			strings.Repeat("-", 4))
		for _, r := range runs {
			fmt.Fprintf(w, "%-38s %-12s %-24s %-6d %s\n",
				r.RunID, r.Status, r.CurrentStage, r.RetryCount, r.RepoURL)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show detailed run state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := defaultStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		ps, err := store.Get(args[0])
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd, ps)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Run %s\n", ps.RunID)
		fmt.Fprintf(w, "  Repository: %s\n", ps.RepoURL)
		fmt.Fprintf(w, "  Status:     %s\n", ps.Status)
		fmt.Fprintf(w, "  Stage:      %s\n", ps.CurrentStage)
		fmt.Fprintf(w, "  Retries:    %d\n", ps.RetryCount)
		if ps.LastErrorMessage != "" {
			fmt.Fprintf(w, "  Last Error: %s\n", ps.LastErrorMessage)
		}
		fmt.Fprintf(w, "  Created:    %s\n", ps.CreatedAt)
		fmt.Fprintf(w, "  Updated:    %s\n", ps.UpdatedAt)

		if len(ps.RecoveryNotes) > 0 {
			fmt.Fprintln(w, "  Recovery Notes:")
			for _, n := range ps.RecoveryNotes {
				fmt.Fprintf(w, "    #%d (%s): %s\n", n.Retry, n.Source, firstLine(n.Text))
			}
		}
		if len(ps.Attempts) > 0 {
			fmt.Fprintln(w, "  Attempts:")
			for _, a := range ps.Attempts {
				line := fmt.Sprintf("    %s attempt %d: %s (%s)", a.Agent, a.Attempt, a.Outcome, a.Duration)
				if a.Error != "" {
					line += ": " + a.Error
				}
				fmt.Fprintln(w, line)
			}
		}
		return nil
	},
}

var runsEventsCmd = &cobra.Command{
	Use:   "events <run-id>",
	Short: "Show the event trail for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := openDB()
		if err != nil {
			return err
		}
		defer cleanup()

		events, err := d.RunEvents(args[0])
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd, events)
		}

		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No events recorded.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-21s %-18s %-24s %-16s %-6s %s\n", "TIME", "EVENT", "STAGE", "ACTION", "RETRY", "DETAIL")
		for _, e := range events {
			fmt.Fprintf(w, "%-21s %-18s %-24s %-16s %-6d %s\n",
				e.Timestamp, e.Event, e.Stage, e.Action, e.Retry, e.Detail)
		}
		return nil
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run's state and artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := defaultStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
		return nil
	},
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	runsListCmd.Flags().String("status", "", "Filter by status (pending, in_progress, completed, failed)")
	runsListCmd.Flags().String("format", "text", "Output format: text or json")
	runsShowCmd.Flags().String("format", "text", "Output format: text or json")
	runsEventsCmd.Flags().String("format", "text", "Output format: text or json")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsEventsCmd)
	runsCmd.AddCommand(runsDeleteCmd)
}
