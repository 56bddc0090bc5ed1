package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/repofactor/repofactor/internal/pipeline"
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Evaluate the decision function for a stage and retry count",
	Long: `Evaluate the pipeline decision function in isolation: given a current stage
and a retry count, print the action the orchestrator would take next. Useful
for scripting and for inspecting the retry boundary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, _ := cmd.Flags().GetString("stage")
		retry, _ := cmd.Flags().GetInt("retry")

		if !pipeline.IsValidStage(stage) {
			return fmt.Errorf("unknown stage %q (valid stages: %s)", stage, validStageList())
		}

		action := pipeline.Decide(pipeline.Snapshot{
			Stage: pipeline.Stage(stage),
			Retry: retry,
		})

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			out := struct {
				Stage  string `json:"stage"`
				Retry  int    `json:"retry"`
				Action string `json:"action"`
			}{stage, retry, string(action)}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "next action: %s\n", action)
		return nil
	},
}

func validStageList() string {
	names := make([]string, len(pipeline.ValidStages))
	for i, s := range pipeline.ValidStages {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func init() {
	decideCmd.Flags().String("stage", "", "Current pipeline stage")
	decideCmd.Flags().Int("retry", 0, "Current retry count")
	decideCmd.Flags().Bool("json", false, "Print the decision as JSON")
	decideCmd.MarkFlagRequired("stage")
}
