package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	baseDirFlag string
	logLevel    string

	// rootCtx is cancelled on SIGINT/SIGTERM so every subcommand's
	// long-running work (the engine, the watcher) gets a chance to
	// drain in-flight state before the process exits.
	rootCtx    context.Context
	rootCancel context.CancelFunc

	current *app
)

var rootCmd = &cobra.Command{
	Use:   "scd",
	Short: "scd - spec and issue tracker with agent execution streams",
	Long:  "scd tracks specs and issues across a SQLite store, a markdown tree, and JSONL snapshots, and orchestrates coding-agent executions against them.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		baseDir, err := resolveBaseDir(baseDirFlag)
		if err != nil {
			return err
		}

		a, err := buildApp(rootCtx, baseDir)
		if err != nil {
			return err
		}
		if logLevel != "" {
			a.cfg.LogLevel = logLevel
			configureLogging(a.cfg.LogLevel)
		}
		current = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current == nil {
			return nil
		}
		err := current.Close()
		current = nil
		rootCancel()
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseDirFlag, "base-dir", "", "project root (default: $SCD_BASE_DIR or the current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override config.json's log-level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
