package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"normcode/internal/checkpoint"
	"normcode/internal/compiler"
	"normcode/internal/orchestrator"
	"normcode/internal/paradigm"
	"normcode/internal/perception"
	"normcode/internal/refalgebra"
	"normcode/internal/toolkit"
)

var (
	runInputPath       string
	runParadigmsDir    string
	runMaxConcurrent   int64
	runStallCycles     int
	runMaxCycles       int
	runCycleTimeout    time.Duration
	runCheckpointPath  string
	runCheckpointEvery time.Duration
	runID              string
)

var runCmd = &cobra.Command{
	Use:   "run <source.ncds>",
	Short: "Compile a plan and drive it to completion through the Orchestrator",
	Long: `Run compiles source, seeds the plan's ground concepts from --input,
wires the default perception faculties and paradigm registry, and drives
the Orchestrator's cycle loop until the plan completes, fails, stalls, or
its context is cancelled (ctrl-c or --timeout).

With --checkpoint, the run's Blackboard and concept references are
periodically saved to a SQLite checkpoint store, resumable with
"normcode resume".`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runInputPath, "input", "", "JSON file of {conceptName: value} seeding ground concepts")
	runCmd.Flags().StringVar(&runParadigmsDir, "paradigms-dir", "paradigms", "directory FSLoader reads <id>.json paradigm documents from")
	runCmd.Flags().Int64Var(&runMaxConcurrent, "max-concurrent", 4, "max concurrently in-flight perception faculty calls")
	runCmd.Flags().IntVar(&runStallCycles, "stall-cycles", 20, "consecutive no-progress cycles before declaring the run stalled")
	runCmd.Flags().IntVar(&runMaxCycles, "max-cycles", 0, "hard cap on cycle count; 0 means use the config file's limits.max_cycles")
	runCmd.Flags().StringVar(&runCheckpointPath, "checkpoint", "", "SQLite checkpoint store path; empty disables checkpointing unless the config file sets checkpoint.backend=sqlite")
	runCmd.Flags().DurationVar(&runCheckpointEvery, "checkpoint-every", 5*time.Second, "checkpoint interval when --checkpoint is set")
	runCmd.Flags().StringVar(&runID, "run-id", "", "run id recorded in checkpoints (default: a fresh UUID)")
	runCmd.Flags().DurationVar(&runCycleTimeout, "cycle-timeout", 0, "per-cycle dispatch deadline; 0 means use the config file's limits.cycle_timeout")
}

// applyConfigDefaults lets any flag the caller didn't explicitly set fall
// back to the loaded config file rather than a flag-level hardcoded
// default, so "normcode run --config prod.yaml plan.ncds" behaves the
// same as passing every tuning flag by hand.
func applyConfigDefaults(cmd *cobra.Command) {
	if !cmd.Flags().Changed("max-concurrent") && cfg.Router.MaxConcurrentFacultyCalls > 0 {
		runMaxConcurrent = int64(cfg.Router.MaxConcurrentFacultyCalls)
	}
	if !cmd.Flags().Changed("max-cycles") && cfg.Limits.MaxCycles > 0 {
		runMaxCycles = cfg.Limits.MaxCycles
	}
	if !cmd.Flags().Changed("cycle-timeout") && cfg.Limits.CycleTimeout > 0 {
		runCycleTimeout = cfg.Limits.CycleTimeout
	}
	if !cmd.Flags().Changed("checkpoint") && cfg.Checkpoint.Backend == "sqlite" && cfg.Checkpoint.Path != "" {
		runCheckpointPath = cfg.Checkpoint.Path
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	applyConfigDefaults(cmd)
	path := args[0]
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	concepts, inferences, stats, err := compiler.Compile(string(source))
	if err != nil {
		return fmt.Errorf("compile %s: %w", path, err)
	}
	logger.Info("compiled plan", zap.String("path", path), zap.Duration("took", stats.Total()),
		zap.Int("concepts", len(concepts.Concepts)), zap.Int("inferences", len(inferences.Inferences)))

	seed, err := seedGroundConcepts(concepts, inferences, runInputPath)
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

	orch := orchestrator.New(concepts, inferences, router, loader, registry, seed, orchestrator.Config{
		MaxConcurrentFaculty: runMaxConcurrent,
		StallCycles:          runStallCycles,
		MaxCycles:            runMaxCycles,
		CycleTimeout:         runCycleTimeout,
	})

	if runID == "" {
		runID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx, token := orchestrator.NewCancelToken(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			fmt.Println("\ninterrupted, cancelling run...")
			token.Cancel(fmt.Errorf("interrupted by signal"))
		}
	}()
	defer signal.Stop(sigCh)

	var checkpointStop chan struct{}
	var checkpointWg sync.WaitGroup
	if runCheckpointPath != "" {
		store, err := checkpoint.OpenSQLiteStore(runCheckpointPath)
		if err != nil {
			return fmt.Errorf("open checkpoint store %s: %w", runCheckpointPath, err)
		}
		defer store.Close()
		checkpointStop = startCheckpointing(orch, inferences, store, runID, runCheckpointEvery, &checkpointWg)
	}

	outcome, runErr := orch.Run(ctx)

	if checkpointStop != nil {
		close(checkpointStop)
		checkpointWg.Wait()
	}

	metrics := orch.Metrics()
	fmt.Printf("run %s: %s (cycles=%d completions=%d failures=%d skips=%d iterations=%d)\n",
		runID, outcome, metrics.Cycles, metrics.Completions, metrics.Failures, metrics.Skips, metrics.Iterations)

	if outcome == orchestrator.Completed {
		printReferences(orch.References())
	}
	if runErr != nil {
		return runErr
	}
	return nil
}

// seedGroundConcepts reads --input (if given) and binds every concept no
// inference produces; a ground concept without a seed value is left
// unbound, which the Orchestrator will never spontaneously materialize.
func seedGroundConcepts(concepts *compiler.ConceptRepo, inferences *compiler.InferenceRepo, inputPath string) (map[string]*refalgebra.Reference, error) {
	produced := map[string]bool{}
	for _, inf := range inferences.Inferences {
		if inf.OutputConceptID != "" {
			produced[inf.OutputConceptID] = true
		}
	}

	values := map[string]interface{}{}
	if inputPath != "" {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", inputPath, err)
		}
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parse %s: %w", inputPath, err)
		}
	}

	seed := map[string]*refalgebra.Reference{}
	for id, concept := range concepts.Concepts {
		if produced[id] {
			continue
		}
		if v, ok := values[concept.Name]; ok {
			seed[id] = refalgebra.Singleton(refalgebra.ConcreteElement(v))
		}
	}
	return seed, nil
}

func printReferences(refs map[string]*refalgebra.Reference) {
	for id, ref := range refs {
		for i, el := range ref.Elements {
			if v, ok := el.Value(); ok {
				fmt.Printf("  %s[%d] = %v\n", id, i, v)
			}
		}
	}
}

// startCheckpointing periodically snapshots the Blackboard and references
// into store until stop is closed, grounding the teacher's MangleWatcher's
// own background-goroutine-plus-stop-channel lifecycle.
func startCheckpointing(orch *orchestrator.Orchestrator, inferences *compiler.InferenceRepo, store checkpoint.Store, runID string, interval time.Duration, wg *sync.WaitGroup) chan struct{} {
	stop := make(chan struct{})
	shapes := checkpoint.ShapesOf(inferences)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		cycle := 0
		for {
			select {
			case <-ticker.C:
				cycle++
				snap := checkpoint.Snapshot{
					RunID:      runID,
					Cycle:      cycle,
					Entries:    orch.Blackboard().Snapshot(),
					References: orch.References(),
					Shapes:     shapes,
				}
				if err := store.Save(snap); err != nil {
					logger.Warn("checkpoint save failed", zap.String("run_id", runID), zap.Error(err))
				}
			case <-stop:
				return
			}
		}
	}()
	return stop
}
