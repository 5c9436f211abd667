// Package main implements the normcode CLI, the entry point for compiling
// NormCode source into a Concept/Inference repository pair and driving it
// through the Orchestrator to completion.
//
// # File Index
//
//   - main.go           - entry point, rootCmd, global flags, logger wiring
//   - cmd_compile.go    - compile, validate
//   - cmd_run.go        - run, the end-to-end compile+execute path
//   - cmd_checkpoint.go - snapshot, resume, fork, cancel
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"normcode/internal/config"
	"normcode/internal/logging"
)

var (
	// Global flags
	verbose    bool
	debug      bool
	jsonLogs   bool
	workspace  string
	timeout    time.Duration
	configPath string

	// logger is the zap logger used for CLI-facing output across every
	// subcommand, separate from the internal category loggers in
	// internal/logging which record per-run telemetry to disk.
	logger *zap.Logger

	// cfg is loaded once in PersistentPreRunE and read by subcommands as
	// a fallback for any flag the user didn't explicitly set.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "normcode",
	Short: "normcode - compiler and orchestrator for NormCode plans of inferences",
	Long: `normcode compiles NormCode source into a Concept Repository and an
Inference Repository, then drives the result through the Orchestrator's
dependency-ordered cycle loop.

Logic determines what runs next; faculties only materialize values the
algebra has already decided are needed.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		zapCfg := zap.NewProductionConfig()
		if verbose || cfg.Logging.DebugMode {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		} else if abs, err := filepath.Abs(ws); err == nil {
			ws = abs
		}
		workspace = ws

		if err := logging.Initialize(logging.Options{
			Workspace:  ws,
			DebugMode:  debug || cfg.Logging.DebugMode,
			JSONFormat: jsonLogs || cfg.Logging.JSONFormat,
			Categories: cfg.Logging.Categories,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Shutdown()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose CLI logging")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable per-category file logging under <workspace>/.normcode/logs")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit file logs as JSON lines")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: current directory)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "run timeout")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default: built-in defaults, see internal/config)")

	rootCmd.AddCommand(
		compileCmd,
		validateCmd,
		runCmd,
		snapshotCmd,
		resumeCmd,
		forkCmd,
		cancelCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
