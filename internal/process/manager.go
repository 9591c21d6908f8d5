package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var errNotTracked = errors.New("no such process record")

// entry is the manager's private bookkeeping for one spawned process.
type entry struct {
	mu     sync.Mutex
	record Record
	cmd    *exec.Cmd
	onExit func(Record)

	timeoutTimer *time.Timer
	terminated   bool
}

// Manager tracks every spawned subprocess by id and drives its
// lifecycle transitions (spec 4.G).
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		entries: map[string]*entry{},
		now:     time.Now,
	}
}

// Spawn starts cfg.Argv and returns the new record's id. The returned
// error is ErrNoPID (wrapped) when the process never starts; on any
// other outcome the process is tracked until it reaches a terminal
// state and is cleaned up processRecordTTL later.
func (m *Manager) Spawn(ctx context.Context, cfg Config) (string, error) {
	cmd := exec.CommandContext(ctx, cfg.Argv[0], cfg.Argv[1:]...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = cfg.Env
	}
	configureProcess(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("process: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("process: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil || cmd.Process == nil {
		return "", fmt.Errorf("%w: %v", ErrNoPID, err)
	}

	id := uuid.New().String()
	now := m.now()
	e := &entry{
		cmd:    cmd,
		onExit: cfg.OnExit,
		record: Record{
			ID:           id,
			Status:       StatusBusy,
			PID:          cmd.Process.Pid,
			StartedAt:    now,
			LastActivity: now,
		},
	}

	m.mu.Lock()
	m.entries[id] = e
	m.mu.Unlock()

	if cfg.Timeout > 0 {
		e.timeoutTimer = time.AfterFunc(cfg.Timeout, func() {
			logrus.WithField("id", id).WithField("timeout", cfg.Timeout).Warn("process exceeded timeout, terminating")
			_ = m.Terminate(id)
		})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go m.pumpHybrid(e, stdout, cfg, &wg)
	go m.pumpPlain(e, stderr, &wg)

	go func() {
		wg.Wait()
		waitErr := cmd.Wait()
		m.finish(id, waitErr)
	}()

	return id, nil
}

func (m *Manager) pumpHybrid(e *entry, r io.Reader, cfg Config, wg *sync.WaitGroup) {
	defer wg.Done()
	onEvent := cfg.OnEvent
	onText := cfg.OnTerminalLine
	if !cfg.Hybrid {
		onEvent = nil
	}
	lb := newLineBuffer(onEvent, onText)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			lb.write(string(buf[:n]))
			m.touch(e)
		}
		if err != nil {
			break
		}
	}
	lb.flush()
}

func (m *Manager) pumpPlain(e *entry, r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			m.touch(e)
		}
		if err != nil {
			break
		}
	}
}

func (m *Manager) touch(e *entry) {
	e.mu.Lock()
	e.record.LastActivity = m.now()
	e.mu.Unlock()
}

// finish is called once the subprocess's Wait() returns, transitioning
// the record to its terminal state.
func (m *Manager) finish(id string, waitErr error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	if e.timeoutTimer != nil {
		e.timeoutTimer.Stop()
	}
	if e.record.Status.Terminal() {
		e.mu.Unlock()
		return
	}

	now := m.now()
	e.record.CompletedAt = now
	if waitErr == nil {
		e.record.Status = StatusCompleted
		code := 0
		e.record.ExitCode = &code
	} else if exitErr, ok := waitErr.(*exec.ExitError); ok {
		code := exitErr.ExitCode()
		e.record.ExitCode = &code
		if code == 0 {
			e.record.Status = StatusCompleted
		} else {
			e.record.Status = StatusCrashed
		}
	} else {
		e.record.Status = StatusCrashed
	}
	status := e.record.Status
	snapshot := e.record
	onExit := e.onExit
	e.mu.Unlock()

	logrus.WithField("id", id).WithField("status", status).Info("process exited")

	if onExit != nil {
		onExit(snapshot)
	}

	time.AfterFunc(processRecordTTL, func() {
		m.mu.Lock()
		delete(m.entries, id)
		m.mu.Unlock()
	})
}

// Terminate drives the terminate(id) protocol: busy → terminating →
// {completed, crashed}. It is idempotent — terminating an already
// terminal or already-terminating record is a no-op.
func (m *Manager) Terminate(id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("process: %s: %w", id, errNotTracked)
	}

	e.mu.Lock()
	if e.record.Status.Terminal() || e.terminated {
		e.mu.Unlock()
		return nil
	}
	e.terminated = true
	e.record.Status = StatusTerminating
	e.record.Signal = "SIGTERM"
	proc := e.cmd.Process
	e.mu.Unlock()

	if err := sendGracefulSignal(proc); err != nil {
		logrus.WithField("id", id).WithError(err).Warn("graceful signal failed, force killing")
		e.mu.Lock()
		e.record.Signal = "SIGKILL"
		e.mu.Unlock()
		_ = proc.Kill()
		return nil
	}

	go func() {
		timer := time.NewTimer(terminateGrace)
		defer timer.Stop()
		tick := time.NewTicker(50 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-timer.C:
				if isProcessRunning(proc.Pid) {
					logrus.WithField("id", id).Warn("grace period elapsed, force killing")
					e.mu.Lock()
					e.record.Signal = "SIGKILL"
					e.mu.Unlock()
					_ = proc.Kill()
				}
				return
			case <-tick.C:
				if !isProcessRunning(proc.Pid) {
					return
				}
			}
		}
	}()

	return nil
}

// Get returns a snapshot of one tracked record.
func (m *Manager) Get(id string) (Record, bool) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return Record{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record, true
}

// List returns a snapshot of every currently tracked record.
func (m *Manager) List() []Record {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.record)
		e.mu.Unlock()
	}
	return out
}
