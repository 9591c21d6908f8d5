package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/scdev/scd/internal/checkpoint"
	"github.com/scdev/scd/internal/config"
	"github.com/scdev/scd/internal/engine"
	"github.com/scdev/scd/internal/eventbus"
	"github.com/scdev/scd/internal/process"
	"github.com/scdev/scd/internal/store"
	"github.com/scdev/scd/internal/worktree"
	"github.com/sirupsen/logrus"
)

// app bundles the wired-together packages every subcommand needs. It is
// built once per invocation in PersistentPreRunE and torn down in
// PersistentPostRunE.
type app struct {
	cfg    config.Config
	store  *store.Store
	bus    *eventbus.Bus
	pm     *process.Manager
	engine *engine.Engine
	repo   *worktree.Manager
	queue  *checkpoint.Queue
	cp     *checkpoint.Manager

	engineCancel context.CancelFunc
	engineDone   chan struct{}

	color bool
}

// buildApp opens the entity store, wires the event bus, and starts the
// engine's dispatch loop in the background. ctx governs the engine's
// lifetime; callers stop it with (*app).Close.
func buildApp(ctx context.Context, baseDir string) (*app, error) {
	cfg, err := config.Load(baseDir)
	if err != nil {
		return nil, fmt.Errorf("scd: load config: %w", err)
	}
	configureLogging(cfg.LogLevel)

	st, err := store.Open(ctx, filepath.Join(baseDir, cfg.StoreDBFile))
	if err != nil {
		return nil, fmt.Errorf("scd: open store: %w", err)
	}

	bus := eventbus.New()
	st.SetEventSink(bus)

	pm := process.New()
	eng := engine.New(pm, bus, cfg.MaxConcurrentExecutions)

	repo := worktree.New(baseDir)
	queue := checkpoint.NewQueue()
	cp := checkpoint.NewManager(repo, queue)

	engineCtx, engineCancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.Run(engineCtx)
	}()

	return &app{
		cfg:          cfg,
		store:        st,
		bus:          bus,
		pm:           pm,
		engine:       eng,
		repo:         repo,
		queue:        queue,
		cp:           cp,
		engineCancel: engineCancel,
		engineDone:   done,
		color:        isatty.IsTerminal(os.Stdout.Fd()),
	}, nil
}

// Close stops the engine's dispatch loop, waits for in-flight tasks to
// drain (engine.Run's documented shutdown contract), and closes the
// store.
func (a *app) Close() error {
	a.engineCancel()
	<-a.engineDone
	return a.store.Close()
}

func configureLogging(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: !isatty.IsTerminal(os.Stdout.Fd()),
	})
}

// resolveBaseDir turns the --base-dir flag (or its SCD_BASE_DIR
// environment default) into an absolute path, falling back to the
// current working directory.
func resolveBaseDir(flagValue string) (string, error) {
	dir := flagValue
	if dir == "" {
		if env := os.Getenv("SCD_BASE_DIR"); env != "" {
			dir = env
		}
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("scd: getwd: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("scd: resolve base dir %s: %w", dir, err)
	}
	return abs, nil
}
