package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/repofactor/repofactor/internal/agent"
	"github.com/repofactor/repofactor/internal/backend"
	"github.com/repofactor/repofactor/internal/config"
	"github.com/repofactor/repofactor/internal/github"
	"github.com/repofactor/repofactor/internal/logging"
	"github.com/repofactor/repofactor/internal/orchestrator"
	"github.com/repofactor/repofactor/internal/pipeline"
	"github.com/repofactor/repofactor/internal/repo"
)

var runCmd = &cobra.Command{
	Use:   "run <repo-url>",
	Short: "Integrate a repository end to end",
	Long: `Run the full integration pipeline against a GitHub repository: validate the
URL, clone and snapshot the repo, then drive analysis, implementation,
research-backed retries, and the final diff to a terminal stage.

Progress is printed on stderr; the resulting diff on stdout. The command
exits non-zero when the run ends in report_failure.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoURL := args[0]
		ctx := cmd.Context()

		text, _ := cmd.Flags().GetString("instructions")
		file, _ := cmd.Flags().GetString("instructions-file")
		instructions, err := resolveInstructions(text, file)
		if err != nil {
			return err
		}

		cfg, err := config.LoadDefault()
		if err != nil {
			return err
		}
		if model, _ := cmd.Flags().GetString("model"); model != "" {
			cfg.Backend.Model = model
		}

		log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return err
		}
		defer logging.Sync(log)

		// Pre-flight: the URL must parse and the repository must exist
		// before any backend quota is spent.
		if !github.IsRepoURL(repoURL) {
			return fmt.Errorf("not a GitHub repository URL: %s", repoURL)
		}
		gh := github.NewClient(ctx, os.Getenv(cfg.GitHub.TokenEnv))
		info, err := gh.Validate(ctx, repoURL)
		if err != nil {
			return fmt.Errorf("pre-flight check: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Repository: %s (default branch %s)\n", info.FullName, info.DefaultBranch)

		cloner, err := repo.NewCloneService(cfg.Storage.CloneCacheDir, log)
		if err != nil {
			return fmt.Errorf("clone service: %w", err)
		}
		snap, err := cloner.Clone(ctx, repoURL)
		if err != nil {
			return fmt.Errorf("clone: %w", err)
		}
		defer snap.Cleanup()

		files, err := snap.Files(int64(cfg.Limits.MaxFileBytes))
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		paths := make([]string, 0, len(files))
		for p := range files {
			paths = append(paths, p)
		}
		stack := repo.DetectStack(paths)
		fmt.Fprintf(cmd.ErrOrStderr(), "Snapshot: %d files, stack %v\n", len(files), stack)

		client, err := backend.NewStudio(cfg.Backend, log)
		if err != nil {
			return err
		}
		agents := orchestrator.AgentSet{
			Analyzer:    agent.NewAnalyzer(client, log, cfg.Limits.MaxAnalysisFiles),
			Implementer: agent.NewImplementer(client, log),
			Researcher:  agent.NewResearcher(client, log),
			Differ:      agent.NewDiffer(),
		}

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		database, cleanup, err := openConfiguredDB(cfg)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer cleanup()

		st := pipeline.NewState(repoURL, instructions)
		if err := store.Create(st); err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Run %s\n", st.RunID)

		orch := orchestrator.New(agents, store, database, log)
		orch.SetProgress(cmd.ErrOrStderr())
		orch.SetLogTail(cfg.Limits.LogTail)
		orch.SetModel(cfg.Backend.Model)
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if dryRun {
			orch.SetStopAfter(pipeline.StageAnalysisComplete)
		}

		res, err := orch.Run(ctx, st, orchestrator.Input{
			RepoName: info.Name,
			Files:    files,
			Stack:    stack,
		})
		if err != nil {
			return err
		}

		outputDir, _ := cmd.Flags().GetString("output")
		return reportRun(cmd, res, outputDir)
	},
}

// resolveInstructions returns the integration instructions from --instructions
// or --instructions-file. Exactly one of the two must be given.
func resolveInstructions(text, file string) (string, error) {
	switch {
	case text != "" && file != "":
		return "", fmt.Errorf("use either --instructions or --instructions-file, not both")
	case text != "":
		return text, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read instructions file: %w", err)
		}
		s := strings.TrimSpace(string(data))
		if s == "" {
			return "", fmt.Errorf("instructions file %s is empty", file)
		}
		return s, nil
	default:
		return "", fmt.Errorf("integration instructions are required (--instructions or --instructions-file)")
	}
}

// reportRun prints the outcome of a finished run and maps report_failure to a
// non-zero exit.
func reportRun(cmd *cobra.Command, res *orchestrator.RunResult, outputDir string) error {
	w := cmd.OutOrStdout()

	switch res.FinalStage {
	case pipeline.StageDone:
		var diff agent.DiffResult
		if raw, ok := res.Results["diff"]; ok && json.Unmarshal(raw, &diff) == nil {
			fmt.Fprintln(w)
			fmt.Fprint(w, diff.UnifiedDiff)
			if !strings.HasSuffix(diff.UnifiedDiff, "\n") {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, diff.Summary)
		}
		if outputDir != "" {
			n, err := writeModifiedFiles(res, outputDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Wrote %d modified files to %s\n", n, outputDir)
		}
		fmt.Fprintf(w, "Run %s done (retries: %d)\n", res.RunID, res.RetryCount)
		return nil

	case pipeline.StageAnalysisComplete:
		// Dry run stopped after the analysis stage.
		var an agent.AnalysisResult
		if raw, ok := res.Results["analysis"]; ok && json.Unmarshal(raw, &an) == nil {
			fmt.Fprintf(w, "\nIntegration plan: %d files\n", len(an.AffectedFiles))
			for _, f := range an.AffectedFiles {
				fmt.Fprintf(w, "  %-8s %-40s %s\n", f.ChangeType, f.Path, f.Reason)
			}
			if len(an.Dependencies) > 0 {
				fmt.Fprintf(w, "Dependencies: %s\n", strings.Join(an.Dependencies, ", "))
			}
		}
		fmt.Fprintf(w, "Dry run: stopped after analysis (run %s)\n", res.RunID)
		return nil

	default:
		if res.LastError != "" {
			fmt.Fprintf(w, "Last error: %s\n", res.LastError)
		}
		return fmt.Errorf("run %s failed after %d retries", res.RunID, res.RetryCount)
	}
}

// writeModifiedFiles materializes the implementation result under dir.
func writeModifiedFiles(res *orchestrator.RunResult, dir string) (int, error) {
	raw, ok := res.Results["implementation"]
	if !ok {
		return 0, fmt.Errorf("no implementation result to write")
	}
	var impl agent.ImplementationResult
	if err := json.Unmarshal(raw, &impl); err != nil {
		return 0, fmt.Errorf("decode implementation result: %w", err)
	}

	files := impl.Files()
	for path, content := range files {
		rel := filepath.FromSlash(path)
		if filepath.IsAbs(rel) || strings.HasPrefix(filepath.Clean(rel), "..") {
			return 0, fmt.Errorf("refusing to write outside %s: %s", dir, path)
		}
		dst := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return 0, fmt.Errorf("mkdir for %s: %w", path, err)
		}
		if err := os.WriteFile(dst, []byte(content), 0o644); err != nil {
			return 0, fmt.Errorf("write %s: %w", path, err)
		}
	}
	return len(files), nil
}

func init() {
	runCmd.Flags().StringP("instructions", "i", "", "Integration instructions")
	runCmd.Flags().String("instructions-file", "", "File containing integration instructions")
	runCmd.Flags().String("model", "", "Override the configured backend model")
	runCmd.Flags().Bool("dry-run", false, "Stop after the analysis stage")
	runCmd.Flags().StringP("output", "o", "", "Directory to write modified files into")
}
