// Package main provides the CLI entry point for the reverie decision-loop
// engine.
//
// Reverie drives autonomous simulation actors through a bounded
// perceive-reason-act cycle: each triggering event (a message, a mention, a
// scheduled tick) becomes at most one externally visible action per loop
// iteration.
//
// # Basic Usage
//
// Start the scheduler daemon:
//
//	reverie serve --config reverie.yaml
//
// Run a single cycle for one actor:
//
//	reverie run --config reverie.yaml --actor luna --trigger message --sender user-1 --content "join my guild?"
//
// # Environment Variables
//
//   - REVERIE_CONFIG: Path to configuration file (default: reverie.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key
//   - OPENAI_API_KEY: OpenAI API key
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reverie",
		Short: "Reverie - autonomous actor decision loop",
		Long: `Reverie turns triggering events into explainable actor behavior through a
bounded observe-reason-act loop with per-run tool memoization and resource
accounting.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildRunCmd(),
	)
	return rootCmd
}

func configPathOrDefault(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("REVERIE_CONFIG"); env != "" {
		return env
	}
	return "reverie.yaml"
}
