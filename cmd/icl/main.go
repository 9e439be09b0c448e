// icl drives the Infinite Coding Loop: an ontology-scheduled agent
// orchestrator that synthesizes, verifies, and refines software artifacts
// iteration by iteration (spec §6).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/codeready-toolchain/icl/pkg/agentruntime"
	"github.com/codeready-toolchain/icl/pkg/config"
	"github.com/codeready-toolchain/icl/pkg/journal"
	"github.com/codeready-toolchain/icl/pkg/ontology"
	"github.com/codeready-toolchain/icl/pkg/prompt"
	"github.com/codeready-toolchain/icl/pkg/store"
	"github.com/codeready-toolchain/icl/pkg/supervisor"
	"github.com/codeready-toolchain/icl/pkg/version"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	configureLogging()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// configureLogging sets the process-wide slog level from ICL_LOG_LEVEL
// (spec §6), defaulting to Info when unset or unrecognized.
func configureLogging() {
	level := slog.LevelInfo
	switch os.Getenv("ICL_LOG_LEVEL") {
	case "debug", "DEBUG":
		level = slog.LevelDebug
	case "warn", "WARN", "warning", "WARNING":
		level = slog.LevelWarn
	case "error", "ERROR":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "icl",
		Short: "Infinite Coding Loop — ontology-driven agent orchestrator",
	}

	root.AddCommand(newInitCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newResumeCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the icl build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Full())
			return err
		},
	}
}

// withIterationBudget wraps ctx with cfg's IterationTimeoutSeconds, if
// configured (spec §5's "iteration-wide wall-clock budget (configurable)").
// A zero budget leaves ctx unbounded; the returned cancel must always run.
func withIterationBudget(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.IterationTimeoutSeconds <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(cfg.IterationTimeoutSeconds)*time.Second)
}

// loadEnv loads <project>/.infinitecodingloop/.env if present, warning but
// not failing when it is absent — mirrors the teacher's config-directory
// .env convention, narrowed from a server config dir to the per-project
// state directory.
func loadEnv(projectRoot string) {
	envPath := filepath.Join(projectRoot, config.ProjectDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("no .env file loaded", "path", envPath, "error", err)
	}
}

func newInitCmd() *cobra.Command {
	var specFolder string
	var agentTool string

	cmd := &cobra.Command{
		Use:   "init <project>",
		Short: "Scaffold a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectRoot := args[0]
			configDir := filepath.Join(projectRoot, config.ProjectDir)

			if _, err := os.Stat(filepath.Join(configDir, config.ConfigFile)); err == nil {
				return fmt.Errorf("%w: %s", config.ErrAlreadyInitialized, projectRoot)
			}

			cfg := config.Defaults()
			if specFolder != "" {
				cfg.SpecFolder = specFolder
			}
			if agentTool != "" {
				cfg.DefaultAgentTool = config.AgentTool(agentTool)
				if !cfg.DefaultAgentTool.IsValid() {
					return fmt.Errorf("invalid --agent-tool %q", agentTool)
				}
			}

			if err := config.Write(configDir, cfg); err != nil {
				return fmt.Errorf("write project config: %w", err)
			}

			specDir := filepath.Join(projectRoot, cfg.SpecFolder)
			if err := os.MkdirAll(specDir, 0o755); err != nil {
				return fmt.Errorf("create spec folder: %w", err)
			}

			ontologyJSON, err := ontology.BuiltinOntologyJSON()
			if err != nil {
				return fmt.Errorf("load builtin ontology: %w", err)
			}
			ontologyPath := filepath.Join(specDir, "ontology.json")
			if err := os.WriteFile(ontologyPath, ontologyJSON, 0o644); err != nil {
				return fmt.Errorf("write builtin ontology: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized project at %s\n", projectRoot)
			return nil
		},
	}

	cmd.Flags().StringVar(&specFolder, "spec-folder", "", "project-relative path holding ontology/taxonomy JSON (default: spec)")
	cmd.Flags().StringVar(&agentTool, "agent-tool", "", "default agent tool (claude, cursor, gemini, copilot, opencode)")

	return cmd
}

func newRunCmd() *cobra.Command {
	var project, ontologyPath, model string
	var yolo bool
	var goal string
	var iterationTimeout int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a new iteration",
		RunE: func(cmd *cobra.Command, args []string) error {
			loadEnv(project)

			ctx := cmd.Context()
			cfg, err := config.Initialize(ctx, project)
			if err != nil {
				return err
			}
			if yolo {
				cfg.Yolo = true
			}
			if model != "" {
				cfg.DefaultModel = model
			}
			if iterationTimeout > 0 {
				cfg.IterationTimeoutSeconds = iterationTimeout
			}

			if ontologyPath == "" {
				ontologyPath = filepath.Join(project, cfg.SpecFolder, "ontology.json")
			}

			graph, err := ontology.Load(ontologyPath)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "ontology invalid: %v\n", err)
				os.Exit(int(supervisor.ExitOntologyInvalid))
			}

			iterationID, err := supervisor.NextIterationID(project, time.Now())
			if err != nil {
				return fmt.Errorf("allocate iteration id: %w", err)
			}

			snapshot := supervisor.ConfigSnapshot{
				OntologyPath: ontologyPath,
				Model:        cfg.DefaultModel,
				AgentTool:    cfg.DefaultAgentTool,
				Yolo:         cfg.Yolo,
				Goal:         goal,
			}
			iterationDir, err := supervisor.ScaffoldIteration(project, iterationID, snapshot)
			if err != nil {
				return fmt.Errorf("scaffold iteration: %w", err)
			}

			ctx, cancel := withIterationBudget(ctx, cfg)
			defer cancel()

			code, err := runIteration(ctx, cfg, graph, project, ontologyPath, iterationID, iterationDir, cmd)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
			}
			os.Exit(int(code))
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", ".", "project root directory")
	cmd.Flags().StringVar(&ontologyPath, "ontology", "", "path to ontology.json (default: <project>/<spec_folder>/ontology.json)")
	cmd.Flags().StringVar(&model, "model", "", "override the default model for this run")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "skip the human approval gate")
	cmd.Flags().StringVar(&goal, "goal", "", "goal statement recorded in the iteration's config snapshot")
	cmd.Flags().IntVar(&iterationTimeout, "iteration-timeout", 0, "iteration-wide wall-clock budget in seconds (0: unbounded)")

	return cmd
}

func newResumeCmd() *cobra.Command {
	var project, ontologyPath string
	var iterationTimeout int

	cmd := &cobra.Command{
		Use:   "resume <iteration-id>",
		Short: "Resume an existing iteration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iterationID := args[0]
			loadEnv(project)

			ctx := cmd.Context()
			cfg, err := config.Initialize(ctx, project)
			if err != nil {
				return err
			}
			if iterationTimeout > 0 {
				cfg.IterationTimeoutSeconds = iterationTimeout
			}

			iterationDir := supervisor.IterationDir(project, iterationID)
			if _, err := os.Stat(iterationDir); err != nil {
				return fmt.Errorf("iteration %q not found: %w", iterationID, err)
			}

			if ontologyPath == "" {
				snapshot, err := readSnapshot(iterationDir)
				if err != nil {
					return fmt.Errorf("read iteration config snapshot: %w", err)
				}
				ontologyPath = snapshot.OntologyPath
			}

			graph, err := ontology.Load(ontologyPath)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "ontology invalid: %v\n", err)
				os.Exit(int(supervisor.ExitOntologyInvalid))
			}

			ctx, cancel := withIterationBudget(ctx, cfg)
			defer cancel()

			code, err := runIteration(ctx, cfg, graph, project, ontologyPath, iterationID, iterationDir, cmd)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
			}
			os.Exit(int(code))
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", ".", "project root directory")
	cmd.Flags().StringVar(&ontologyPath, "ontology", "", "path to ontology.json (default: the iteration's recorded snapshot)")
	cmd.Flags().IntVar(&iterationTimeout, "iteration-timeout", 0, "iteration-wide wall-clock budget in seconds (0: unbounded)")

	return cmd
}

// runIteration opens the per-iteration journal/store file, wires a
// Supervisor, and runs it to completion — shared by `run` (fresh
// iteration) and `resume` (replays prior events before continuing, via
// the Scheduler's own world-state projection).
func runIteration(ctx context.Context, cfg *config.Config, graph *ontology.Graph, project, ontologyPath,
	iterationID, iterationDir string, cmd *cobra.Command) (supervisor.ExitCode, error) {

	journalPath := filepath.Join(iterationDir, supervisor.JournalFile)

	journalClient, err := journal.Open(ctx, journalPath)
	if err != nil {
		return supervisor.ExitGenericError, fmt.Errorf("open journal: %w", err)
	}
	defer func() {
		if err := journalClient.Close(); err != nil {
			log.Printf("error closing journal: %v", err)
		}
	}()

	storeClient, err := store.Open(ctx, journalPath)
	if err != nil {
		return supervisor.ExitGenericError, fmt.Errorf("open artifact store: %w", err)
	}
	defer func() {
		if err := storeClient.Close(); err != nil {
			log.Printf("error closing artifact store: %v", err)
		}
	}()

	promptLoader := prompt.NewLoader(filepath.Dir(ontologyPath))
	runner := agentruntime.NewRunner()

	var approver supervisor.Approver
	if cfg.Yolo {
		approver = supervisor.AutoApprover{}
	} else {
		approver = &supervisor.StdioApprover{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
	}

	sup := supervisor.New(graph, cfg, journalClient, storeClient, promptLoader, runner, iterationID, iterationDir, approver)

	fmt.Fprintf(cmd.OutOrStdout(), "iteration %s starting\n", iterationID)
	code, err := sup.Run(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "iteration %s finished with exit code %d\n", iterationID, code)

	return code, err
}

func readSnapshot(iterationDir string) (supervisor.ConfigSnapshot, error) {
	data, err := os.ReadFile(filepath.Join(iterationDir, supervisor.ConfigSnapshotFile))
	if err != nil {
		return supervisor.ConfigSnapshot{}, err
	}
	var snapshot supervisor.ConfigSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return supervisor.ConfigSnapshot{}, err
	}
	return snapshot, nil
}

func newListCmd() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List iterations and their current status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := supervisor.ListIterations(project)
			if err != nil {
				return fmt.Errorf("list iterations: %w", err)
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			for _, id := range ids {
				status, err := iterationStatus(ctx, project, id)
				if err != nil {
					fmt.Fprintf(out, "%s\t%s\n", id, fmt.Sprintf("error: %v", err))
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", id, status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", ".", "project root directory")

	return cmd
}

// iterationStatus scans an iteration's raw journal events (without
// Replay) to report a short status: whether an IterationComplete or
// Deadlock event exists, otherwise the last event kind. It never
// dispatches an edge.
func iterationStatus(ctx context.Context, project, iterationID string) (string, error) {
	iterationDir := supervisor.IterationDir(project, iterationID)
	journalPath := filepath.Join(iterationDir, supervisor.JournalFile)

	journalClient, err := journal.Open(ctx, journalPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = journalClient.Close() }()

	events, err := journalClient.Events(ctx, iterationID)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return "not started", nil
	}

	for _, ev := range events {
		switch ev.Kind {
		case journal.KindIterationComplete:
			return "complete", nil
		case journal.KindDeadlock:
			return "deadlocked", nil
		}
	}

	last := events[len(events)-1]
	return fmt.Sprintf("in progress (last event: %s)", last.Kind), nil
}
