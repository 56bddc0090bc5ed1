package prompt

import (
	"strings"
	"testing"
)

func TestRender_SimpleVars(t *testing.T) {
	tmpl := "Analyzing {{repo_name}} for task {{task}}."
	vars := Vars{
		"repo_name": "widgets",
		"task":      "add rate limiting",
	}

	result, err := Render(tmpl, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "Analyzing widgets for task add rate limiting."
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestRender_MissingVar(t *testing.T) {
	tmpl := "Repo {{repo_name}}, task {{task}}."
	vars := Vars{
		"repo_name": "widgets",
	}

	_, err := Render(tmpl, vars)
	if err == nil {
		t.Fatal("expected error for missing variable")
	}
	if !strings.Contains(err.Error(), "task") {
		t.Errorf("error should mention missing variable, got: %v", err)
	}
}

func TestRender_MultipleMissing(t *testing.T) {
	tmpl := "{{a}} and {{b}} and {{c}}"

	_, err := Render(tmpl, Vars{})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, name := range []string{"a", "b", "c"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should mention missing var %q, got: %v", name, err)
		}
	}
}

func TestRender_ConditionalBlock_Present(t *testing.T) {
	tmpl := "Start.{{#if logs}}\nLogs: {{logs}}\n{{/if}}End."
	vars := Vars{
		"logs": "compile failed",
	}

	result, err := Render(tmpl, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, "Logs: compile failed") {
		t.Errorf("expected conditional block to be included, got: %q", result)
	}
}

func TestRender_ConditionalBlock_Absent(t *testing.T) {
	tmpl := "Start.{{#if logs}}\nLogs: {{logs}}\n{{/if}}End."

	result, err := Render(tmpl, Vars{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Start.End." {
		t.Errorf("expected 'Start.End.', got: %q", result)
	}
}

func TestRender_ConditionalBlock_EmptyString(t *testing.T) {
	result, err := Render("{{#if logs}}has logs{{/if}}", Vars{"logs": ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty string for empty var, got: %q", result)
	}
}

func TestRender_NestedConditionals(t *testing.T) {
	tmpl := "{{#if outer}}O{{#if inner}}I{{/if}}{{/if}}"

	result, err := Render(tmpl, Vars{"outer": "x", "inner": "y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "OI" {
		t.Errorf("expected %q, got %q", "OI", result)
	}

	result, err = Render(tmpl, Vars{"outer": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "O" {
		t.Errorf("expected %q, got %q", "O", result)
	}
}

func TestRender_DanglingClose(t *testing.T) {
	if _, err := Render("text {{/if}} more", Vars{}); err == nil {
		t.Fatal("expected error for dangling {{/if}}")
	}
}

func TestRender_UnclosedConditional(t *testing.T) {
	if _, err := Render("{{#if a}}never closed", Vars{"a": "x"}); err == nil {
		t.Fatal("expected error for unclosed conditional")
	}
}

func TestBuild_BuiltinTemplates(t *testing.T) {
	vars := Vars{
		"instructions": "add rate limiting",
		"repo_url":     "https://github.com/acme/widgets",
		"repo_name":    "widgets",
		"stack":        "",
		"file_table":   "files[1]{path,size}:\n  main.go,120\n",
	}
	// file_excerpts intentionally absent: it is conditional.
	out, err := Build("analysis.md", vars)
	if err != nil {
		t.Fatalf("Build analysis.md: %v", err)
	}
	if !strings.Contains(out, "add rate limiting") {
		t.Error("instructions missing from rendered analysis template")
	}
	if strings.Contains(out, "Key File Contents") {
		t.Error("conditional excerpt section should be omitted")
	}
	if strings.Contains(out, "{{") {
		t.Errorf("unexpanded placeholder in output: %q", out)
	}
}

func TestBuild_UnknownTemplate(t *testing.T) {
	if _, err := Build("nope.md", Vars{}); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestGet_AllBuiltins(t *testing.T) {
	for _, name := range []string{"analysis.md", "implement.md", "research.md"} {
		tmpl, err := Get(name)
		if err != nil {
			t.Errorf("Get(%q): %v", name, err)
		}
		if tmpl == "" {
			t.Errorf("Get(%q) returned empty template", name)
		}
	}
}
