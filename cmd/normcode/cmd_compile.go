package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"normcode/internal/compiler"
)

var (
	compileWatch bool
	compileStats bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <source.ncds>",
	Short: "Run the six-pass compiler over a NormCode source file",
	Long: `Compiles a NormCode source file through Derive, Formalize, Recompose,
Provision, ReconfirmSyntax, and Activate, reporting the resulting Concept
and Inference counts.

With --watch, the file is recompiled on every save; with --stats, each
pass's duration is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

var validateCmd = &cobra.Command{
	Use:   "validate <source.ncds>",
	Short: "Compile a source file without producing a runnable plan",
	Long: `Validate runs the same six passes as compile but treats any
compiler error as the command's failure condition; it never hands the
result to the Orchestrator. Use this in CI to catch malformed plans before
a run is attempted.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	compileCmd.Flags().BoolVar(&compileWatch, "watch", false, "recompile on every save to the source file")
	compileCmd.Flags().BoolVar(&compileStats, "stats", false, "print per-pass compile timing")
}

func runCompile(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := compileOnce(path); err != nil {
		return err
	}
	if !compileWatch {
		return nil
	}
	return watchAndRecompile(path)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	_, _, _, err = compiler.Compile(string(source))
	if err != nil {
		return fmt.Errorf("%s: invalid plan: %w", path, err)
	}
	fmt.Printf("%s: ok\n", path)
	return nil
}

func compileOnce(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	concepts, inferences, stats, err := compiler.Compile(string(source))
	if err != nil {
		logger.Error("compile failed", zap.String("path", path), zap.Error(err))
		return err
	}

	fmt.Printf("%s: %d concepts, %d inferences\n", path, len(concepts.Concepts), len(inferences.Inferences))
	if compileStats {
		for _, pass := range stats.Passes {
			fmt.Printf("  %-20s %v\n", pass.Name, pass.Duration)
		}
		fmt.Printf("  %-20s %v\n", "total", stats.Total())
	}
	return nil
}

// watchAndRecompile debounces rapid saves the way the teacher's
// MangleWatcher does, since editors frequently emit several fsnotify
// events for a single logical save.
func watchAndRecompile(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	fmt.Printf("watching %s for changes (ctrl-c to stop)\n", path)

	const debounce = 200 * time.Millisecond
	var last time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if time.Since(last) < debounce {
				continue
			}
			last = time.Now()
			if err := compileOnce(path); err != nil {
				fmt.Fprintf(os.Stderr, "compile error: %v\n", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		}
	}
}
