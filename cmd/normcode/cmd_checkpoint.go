package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"normcode/internal/blackboard"
	"normcode/internal/checkpoint"
	"normcode/internal/compiler"
	"normcode/internal/orchestrator"
	"normcode/internal/paradigm"
	"normcode/internal/perception"
	"normcode/internal/toolkit"
)

var (
	checkpointStorePath string
	resumeSourcePath    string
	resumeStrategy      string
	forkFromRunID       string
	forkToRunID         string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot --checkpoint <path> --run-id <id>",
	Short: "Show the status counts recorded in a stored checkpoint",
	RunE:  runSnapshotInspect,
}

var resumeCmd = &cobra.Command{
	Use:   "resume <source.ncds> --checkpoint <path> --run-id <id>",
	Short: "Resume a checkpointed run from its last saved Blackboard state",
	Long: `Resume recompiles source fresh, reconciles a new Blackboard against
the stored snapshot, and continues the Orchestrator's cycle loop from
there. Under --strategy=patch and --strategy=fillgaps, which behave the
same, any inference whose shape changed since the checkpoint was taken,
and everything downstream of it, starts again from Pending;
--strategy=overwrite restores every recorded status as it was.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

var forkCmd = &cobra.Command{
	Use:   "fork --checkpoint <path> --from <run-id> --to <run-id>",
	Short: "Duplicate a checkpointed run's state under a new run id",
	Long: `Fork copies a snapshot to a new RunID without touching the
source run, letting a caller explore an alternative continuation (e.g. a
different --strategy on resume, or a patched input) without losing the
original history.`,
	RunE: runFork,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel --checkpoint <path> --run-id <id>",
	Short: "Mark every unresolved inference in a checkpointed run as cancelled",
	Long: `Cancel loads a stored snapshot, moves every Pending or Ready
entry to CompletedSkipped, and saves the result back. A cancelled run's
checkpoint is resumable but will report Completed immediately, since
nothing is left to dispatch.`,
	RunE: runCancel,
}

func init() {
	snapshotCmd.Flags().StringVar(&checkpointStorePath, "checkpoint", "", "SQLite checkpoint store path")
	snapshotCmd.Flags().StringVar(&runID, "run-id", "", "run id to inspect")
	snapshotCmd.MarkFlagRequired("checkpoint")
	snapshotCmd.MarkFlagRequired("run-id")

	resumeCmd.Flags().StringVar(&checkpointStorePath, "checkpoint", "", "SQLite checkpoint store path")
	resumeCmd.Flags().StringVar(&runID, "run-id", "", "run id to resume")
	resumeCmd.Flags().StringVar(&resumeStrategy, "strategy", "patch", "reconciliation strategy: patch, overwrite, or fillgaps")
	resumeCmd.Flags().StringVar(&runParadigmsDir, "paradigms-dir", "paradigms", "directory FSLoader reads <id>.json paradigm documents from")
	resumeCmd.Flags().Int64Var(&runMaxConcurrent, "max-concurrent", 4, "max concurrently in-flight perception faculty calls")
	resumeCmd.Flags().IntVar(&runStallCycles, "stall-cycles", 20, "consecutive no-progress cycles before declaring the run stalled")
	resumeCmd.Flags().IntVar(&runMaxCycles, "max-cycles", 0, "hard cap on cycle count; 0 means use the config file's limits.max_cycles")
	resumeCmd.Flags().DurationVar(&runCycleTimeout, "cycle-timeout", 0, "per-cycle dispatch deadline; 0 means use the config file's limits.cycle_timeout")
	resumeCmd.MarkFlagRequired("checkpoint")
	resumeCmd.MarkFlagRequired("run-id")

	forkCmd.Flags().StringVar(&checkpointStorePath, "checkpoint", "", "SQLite checkpoint store path")
	forkCmd.Flags().StringVar(&forkFromRunID, "from", "", "source run id")
	forkCmd.Flags().StringVar(&forkToRunID, "to", "", "destination run id (default: a fresh UUID)")
	forkCmd.MarkFlagRequired("checkpoint")
	forkCmd.MarkFlagRequired("from")

	cancelCmd.Flags().StringVar(&checkpointStorePath, "checkpoint", "", "SQLite checkpoint store path")
	cancelCmd.Flags().StringVar(&runID, "run-id", "", "run id to cancel")
	cancelCmd.MarkFlagRequired("checkpoint")
	cancelCmd.MarkFlagRequired("run-id")
}

func runSnapshotInspect(cmd *cobra.Command, args []string) error {
	store, err := checkpoint.OpenSQLiteStore(checkpointStorePath)
	if err != nil {
		return fmt.Errorf("open checkpoint store %s: %w", checkpointStorePath, err)
	}
	defer store.Close()

	snap, err := store.Load(runID)
	if err != nil {
		return err
	}

	counts := map[blackboard.Status]int{}
	for _, e := range snap.Entries {
		counts[e.Status]++
	}
	fmt.Printf("run %s (fork of %q), cycle %d, %d entries, %d references\n",
		snap.RunID, snap.ForkOf, snap.Cycle, len(snap.Entries), len(snap.References))
	for _, s := range []blackboard.Status{blackboard.Pending, blackboard.Ready, blackboard.InProgress, blackboard.Completed, blackboard.Failed, blackboard.CompletedSkipped} {
		if n := counts[s]; n > 0 {
			fmt.Printf("  %-18s %d\n", s, n)
		}
	}
	return nil
}

func runResume(cmd *cobra.Command, args []string) error {
	applyConfigDefaults(cmd)
	path := args[0]
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	concepts, inferences, _, err := compiler.Compile(string(source))
	if err != nil {
		return fmt.Errorf("compile %s: %w", path, err)
	}

	strategy, err := parseStrategy(resumeStrategy)
	if err != nil {
		return err
	}

	store, err := checkpoint.OpenSQLiteStore(checkpointStorePath)
	if err != nil {
		return fmt.Errorf("open checkpoint store %s: %w", checkpointStorePath, err)
	}
	defer store.Close()

	snap, err := store.Load(runID)
	if err != nil {
		return err
	}

	router := perception.NewPerceptionRouter(map[perception.Norm]perception.BodyFaculty{
		perception.NormFileLocation:   &perception.FilesystemFaculty{Root: workspace},
		perception.NormSavePath:       &perception.FilesystemFaculty{Root: workspace},
		perception.NormScriptLocation: &perception.ScriptFaculty{},
		perception.NormPromptLocation: &perception.PromptLocationFaculty{Root: workspace},
		perception.NormLiteral:        &perception.LiteralFaculty{},
		perception.NormTruthValue:     &perception.LiteralFaculty{},
		perception.NormInMemory:       &perception.LiteralFaculty{},
	})
	loader := &paradigm.FSLoader{Dir: runParadigmsDir}
	registry := toolkit.Builtin()

	orch := orchestrator.New(concepts, inferences, router, loader, registry, snap.References, orchestrator.Config{
		MaxConcurrentFaculty: runMaxConcurrent,
		StallCycles:          runStallCycles,
		MaxCycles:            runMaxCycles,
		CycleTimeout:         runCycleTimeout,
	})
	checkpoint.Reconcile(orch.Blackboard(), snap, inferences, strategy)

	logger.Info("resuming run", zap.String("run_id", runID), zap.String("strategy", resumeStrategy), zap.Int("cycle", snap.Cycle))

	outcome, runErr := orch.Run(context.Background())
	metrics := orch.Metrics()
	fmt.Printf("run %s: %s (cycles=%d completions=%d failures=%d skips=%d)\n",
		runID, outcome, metrics.Cycles, metrics.Completions, metrics.Failures, metrics.Skips)
	if outcome == orchestrator.Completed {
		printReferences(orch.References())
	}
	return runErr
}

func runFork(cmd *cobra.Command, args []string) error {
	if forkToRunID == "" {
		forkToRunID = uuid.NewString()
	}
	store, err := checkpoint.OpenSQLiteStore(checkpointStorePath)
	if err != nil {
		return fmt.Errorf("open checkpoint store %s: %w", checkpointStorePath, err)
	}
	defer store.Close()

	snap, err := store.Fork(forkFromRunID, forkToRunID)
	if err != nil {
		return err
	}
	fmt.Printf("forked %s -> %s (cycle %d, %d entries)\n", forkFromRunID, snap.RunID, snap.Cycle, len(snap.Entries))
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	store, err := checkpoint.OpenSQLiteStore(checkpointStorePath)
	if err != nil {
		return fmt.Errorf("open checkpoint store %s: %w", checkpointStorePath, err)
	}
	defer store.Close()

	snap, err := store.Load(runID)
	if err != nil {
		return err
	}

	cancelled := 0
	ids := make([]string, 0, len(snap.Entries))
	for id := range snap.Entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		e := snap.Entries[id]
		if e.Status == blackboard.Pending || e.Status == blackboard.Ready {
			e.Status = blackboard.CompletedSkipped
			snap.Entries[id] = e
			cancelled++
		}
	}

	if err := store.Save(snap); err != nil {
		return err
	}
	fmt.Printf("cancelled %d unresolved inferences in run %s\n", cancelled, runID)
	return nil
}

func parseStrategy(s string) (checkpoint.Strategy, error) {
	switch s {
	case "patch":
		return checkpoint.Patch, nil
	case "overwrite":
		return checkpoint.Overwrite, nil
	case "fillgaps":
		return checkpoint.FillGaps, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q: want patch, overwrite, or fillgaps", s)
	}
}
