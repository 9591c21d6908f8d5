package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/scdev/scd/internal/watcher"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the markdown tree and JSONL snapshots, reconciling every change into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := watcher.New(watcher.Config{BaseDir: current.cfg.BaseDir}, current.store, current.bus)
		if err != nil {
			return fmt.Errorf("scd watch: %w", err)
		}
		defer w.Close()

		if err := w.Start(rootCtx); err != nil {
			return fmt.Errorf("scd watch: startup: %w", err)
		}

		fmt.Printf("watching %s (ctrl-c to stop)\n", current.cfg.BaseDir)
		if err := w.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scd watch: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
