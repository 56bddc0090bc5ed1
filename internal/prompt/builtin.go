package prompt

// builtinTemplates maps template name to content.
var builtinTemplates = map[string]string{
	"analysis.md":  analysisTemplate,
	"implement.md": implementTemplate,
	"research.md":  researchTemplate,
}

const analysisTemplate = `# Repository Integration Analysis

## Task
{{instructions}}

## Repository
URL: {{repo_url}}
Name: {{repo_name}}
{{#if stack}}
Detected stack: {{stack}}
{{/if}}

## Files
{{file_table}}
{{#if file_excerpts}}

## Key File Contents
{{file_excerpts}}
{{/if}}

## Instructions
1. Identify every file that must change to accomplish the task
2. For each file give the reason, the kind of change, and your confidence (0.0-1.0)
3. List new dependencies and imports the change requires
4. Call out risks and an ordered list of implementation steps

Respond with a single JSON object and nothing else:
{"repo_url": "", "repo_name": "", "affected_files": [{"path": "", "reason": "", "change_type": "modify", "confidence": 0.0, "dependencies": [], "changes_needed": []}], "dependencies": [], "imports_to_add": [], "risks": [], "implementation_steps": [], "estimated_time": ""}
`

const implementTemplate = `# Implement File Change

## Task
{{instructions}}

## File
Path: {{path}}
Reason for change: {{reason}}
{{#if changes_needed}}
Planned changes:
{{changes_needed}}
{{/if}}

## Current Content
{{content}}

## Instructions
Apply the planned changes to this file. Preserve existing behavior that the
task does not touch. Respond with the complete modified file content and
nothing else: no explanations, no fences, no partial output.
`

const researchTemplate = `# Implementation Failure Research

## Error
{{error_message}}
{{#if execution_logs}}

## Recent Execution Logs
{{execution_logs}}
{{/if}}

## Original Task
{{instructions}}

## Instructions
Diagnose the most likely cause of the failure and propose concrete fixes,
best first. Each solution needs an actionable description; include a code
snippet when one would unblock the retry.

Respond with a single JSON object and nothing else:
{"solutions": [{"description": "", "code_snippet": "", "rank": 1}], "search_queries": []}
`
