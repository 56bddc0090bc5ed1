package cli

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecideCommand(t *testing.T) {
	cases := []struct {
		stage string
		retry string
		want  string
	}{
		{"start", "0", "analysis"},
		{"analysis_complete", "0", "implementation"},
		{"implementation_failed", "2", "research"},
		{"implementation_failed", "3", "report_failure"},
		{"implementation_retry", "1", "implementation"},
		{"diff_complete", "0", "done"},
	}
	for _, c := range cases {
		out, err := executeCommand("decide", "--stage", c.stage, "--retry", c.retry)
		if err != nil {
			t.Fatalf("decide --stage %s --retry %s: %v", c.stage, c.retry, err)
		}
		if !strings.Contains(out, "next action: "+c.want) {
			t.Errorf("decide(%s, %s) output = %q, want action %s", c.stage, c.retry, out, c.want)
		}
	}
}

func TestDecideJSON(t *testing.T) {
	t.Cleanup(func() { decideCmd.Flags().Set("json", "false") })

	out, err := executeCommand("decide", "--stage", "start", "--retry", "0", "--json")
	if err != nil {
		t.Fatalf("decide --json: %v", err)
	}

	var got struct {
		Stage  string `json:"stage"`
		Retry  int    `json:"retry"`
		Action string `json:"action"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got.Stage != "start" || got.Retry != 0 || got.Action != "analysis" {
		t.Errorf("decision = %+v", got)
	}
}

func TestDecideRejectsUnknownStage(t *testing.T) {
	_, err := executeCommand("decide", "--stage", "wait_for_approval", "--retry", "0")
	if err == nil {
		t.Fatal("expected error for unknown stage")
	}
	if !strings.Contains(err.Error(), "valid stages") {
		t.Errorf("error does not list valid stages: %v", err)
	}
}

func TestValidStageList(t *testing.T) {
	list := validStageList()
	for _, s := range []string{"start", "analysis_complete", "implementation_complete",
		"implementation_failed", "implementation_retry", "diff_complete", "report_failure", "done"} {
		if !strings.Contains(list, s) {
			t.Errorf("stage list missing %s: %s", s, list)
		}
	}
}
