// Package engine implements the single-process task broker (spec 4.H):
// a FIFO priority queue with dependency gating, bounded concurrency,
// and a retry-to-head policy, dispatching agent subprocesses through
// internal/process and folding their output through internal/coalesce.
package engine

import "time"

// TaskKind discriminates what a task's prompt is about.
type TaskKind string

const (
	TaskKindIssue  TaskKind = "issue"
	TaskKindSpec   TaskKind = "spec"
	TaskKindCustom TaskKind = "custom"
)

// TaskConfig carries the per-task knobs that control its subprocess.
type TaskConfig struct {
	Timeout    time.Duration
	MaxRetries int
	Env        []string
}

// Task is one unit of work submitted to the engine.
type Task struct {
	ID           string
	Kind         TaskKind
	EntityID     string
	Prompt       string
	WorkDir      string
	Priority     int // 0 = highest
	Dependencies []string
	Config       TaskConfig
	CreatedAt    time.Time

	// Argv is the agent executable and arguments to spawn for this
	// task. The prompt is delivered however the concrete agent expects
	// it (stdin, a flag, a file) — the engine just passes Argv through
	// to the process manager unmodified.
	Argv []string

	attempt int
}

// Result is the terminal outcome of one task.
type Result struct {
	TaskID   string
	Success  bool
	ExitCode int
	Output   string
	Metadata map[string]interface{}
	Attempt  int

	StartedAt   time.Time
	CompletedAt time.Time

	Err error
}
