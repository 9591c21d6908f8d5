// Package process wraps os/exec subprocesses in a lifecycle record per
// spec 4.G: spawn, stream, timeout-triggered graceful-then-forceful
// terminate, and hybrid JSON/terminal-text output handling.
package process

import (
	"errors"
	"time"

	"github.com/scdev/scd/internal/coalesce"
)

// Status is a process record's lifecycle state. Terminal states
// (Completed, Crashed) are sticky: a record never transitions out of
// one once reached.
type Status string

const (
	StatusBusy        Status = "busy"
	StatusTerminating Status = "terminating"
	StatusCompleted   Status = "completed"
	StatusCrashed     Status = "crashed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCrashed
}

// ErrNoPID is returned when a spawn attempt never obtains a pid
// synchronously (spec 4.G: "failure to obtain a pid synchronously ⇒
// spawn fails with a no-PID error").
var ErrNoPID = errors.New("process: spawn failed to obtain a pid")

// processRecordTTL is how long a terminal record is kept around after
// exit before the manager removes it, to give late subscribers a
// window to observe the final status. The value is tuned for that
// purpose, not load-bearing for correctness (spec 9 Open Questions).
const processRecordTTL = 5 * time.Second

// terminateGrace is how long Terminate waits after the graceful signal
// before force-killing.
const terminateGrace = 5 * time.Second

// Config describes one subprocess to spawn.
type Config struct {
	Argv    []string
	Dir     string
	Env     []string
	Timeout time.Duration

	// Hybrid enables the JSON/terminal-text line-splitting mode (spec
	// 4.G). When false, OnEvent is not called: stdout lines that decode
	// as events are dropped and the rest still reach OnTerminalLine.
	Hybrid bool

	// OnEvent receives each stdout line that passed the JSON heuristic,
	// already parsed into a coalesce.RawEvent. Nil is valid when Hybrid
	// is false.
	OnEvent func(coalesce.RawEvent)

	// OnTerminalLine receives each line that failed the JSON heuristic,
	// for the parallel terminal viewer transport (spec 4.G).
	OnTerminalLine func(line string)

	// OnExit, if set, is called exactly once when the record reaches a
	// terminal status, before the processRecordTTL cleanup timer starts.
	OnExit func(Record)
}

// Record is the manager's public view of one spawned process.
type Record struct {
	ID       string
	Status   Status
	PID      int
	Signal   string
	ExitCode *int

	StartedAt    time.Time
	LastActivity time.Time
	CompletedAt  time.Time
}
