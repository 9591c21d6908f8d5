package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/coalesce"
	"github.com/scdev/scd/internal/eventbus"
	"github.com/scdev/scd/internal/process"
	"github.com/scdev/scd/internal/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrent is the engine's default bounded-concurrency cap
// (spec 5's backpressure default).
const DefaultMaxConcurrent = 3

// ErrDependencyFailed is returned on a task whose dependency completed
// unsuccessfully; the task fails immediately without spawning.
var ErrDependencyFailed = errors.New("engine: dependency failed")

// ErrUnknownTask is returned by Cancel for an id that is neither queued,
// running, nor completed.
var ErrUnknownTask = errors.New("engine: unknown task")

// Metrics is a point-in-time snapshot of the engine's state, per spec
// 4.H's metrics list.
type Metrics struct {
	MaxConcurrent    int
	CurrentlyRunning int
	AvailableSlots   int
	Queued           int
	Completed        int
	Failed           int
	AvgDuration      time.Duration
	SuccessRate      float64
	Throughput       float64 // completed tasks per minute since engine start
	ProcessesSpawned int
	ProcessesActive  int
}

type runningTask struct {
	task      *Task
	processID string
	startedAt time.Time
	cancel    context.CancelFunc
}

// Engine is a single-process task broker (spec 4.H).
type Engine struct {
	mu       sync.Mutex
	queue    []*Task
	running  map[string]*runningTask
	completed map[string]*Result
	waiters  map[string][]chan Result

	sem           *semaphore.Weighted
	maxConcurrent int64

	pm  *process.Manager
	bus *eventbus.Bus
	now func() time.Time

	wake chan struct{}

	startedAt        time.Time
	totalCompleted   int
	totalFailed      int
	totalDuration    time.Duration
	processesSpawned int
}

// New builds an Engine with the given process manager, event bus, and
// concurrency cap. maxConcurrent <= 0 uses DefaultMaxConcurrent.
func New(pm *process.Manager, bus *eventbus.Bus, maxConcurrent int) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Engine{
		running:       map[string]*runningTask{},
		completed:     map[string]*Result{},
		waiters:       map[string][]chan Result{},
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		maxConcurrent: int64(maxConcurrent),
		pm:            pm,
		bus:           bus,
		now:           time.Now,
		wake:          make(chan struct{}, 1),
		startedAt:     time.Now(),
	}
}

// Run drives the dispatch loop until ctx is cancelled, at which point
// it waits for in-flight tasks to finish before returning (spec 4.H:
// "Shutdown waits for in-flight tasks, then drains the queue").
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case <-e.wake:
			e.dispatchOnce(ctx)
		}
	}
}

func (e *Engine) shutdown() {
	for {
		e.mu.Lock()
		n := len(e.running)
		e.mu.Unlock()
		if n == 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	e.mu.Lock()
	drained := e.queue
	e.queue = nil
	e.mu.Unlock()
	for _, t := range drained {
		e.failTask(t, fmt.Errorf("engine: shutdown before dispatch"))
	}
}

func (e *Engine) signalWake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Submit enqueues a task, inserted in priority order (stable: after
// any existing task of equal or higher priority, before any of lower
// priority), and returns its id for Await/Cancel/Status.
func (e *Engine) Submit(task *Task) string {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = e.now()
	}
	e.mu.Lock()
	pos := len(e.queue)
	for i, t := range e.queue {
		if t.Priority > task.Priority {
			pos = i
			break
		}
	}
	e.queue = append(e.queue, nil)
	copy(e.queue[pos+1:], e.queue[pos:])
	e.queue[pos] = task
	e.mu.Unlock()

	e.publish("execution:created", task)
	e.signalWake()
	return task.ID
}

// pushToHead bypasses priority ordering entirely: a retry dominates
// every other task regardless of its own or others' priority values
// (resolves the "retry queue head-insertion vs. priority semantics"
// open question literally, per spec 4.H's own wording).
func (e *Engine) pushToHead(task *Task) {
	e.mu.Lock()
	e.queue = append([]*Task{task}, e.queue...)
	e.mu.Unlock()
	e.signalWake()
}

// pushToTail defers a task whose dependency is not yet resolved,
// without touching its priority ordering among not-yet-deferred tasks.
func (e *Engine) pushToTail(task *Task) {
	e.mu.Lock()
	e.queue = append(e.queue, task)
	e.mu.Unlock()
}

// dispatchOnce drains the queue in a single pass bounded by its
// snapshot length, so a run of only pending-dependency tasks re-queued
// to the tail cannot livelock the loop (spec 4.H).
func (e *Engine) dispatchOnce(ctx context.Context) {
	e.mu.Lock()
	snapshot := len(e.queue)
	e.mu.Unlock()

	for i := 0; i < snapshot; i++ {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		task := e.queue[0]
		e.queue = e.queue[1:]

		depStatus := e.dependencyStatusLocked(task)
		if depStatus == depFailed {
			e.mu.Unlock()
			e.failTask(task, fmt.Errorf("%s: %w", task.ID, ErrDependencyFailed))
			continue
		}
		if depStatus == depPending {
			e.mu.Unlock()
			e.pushToTail(task)
			continue
		}
		e.mu.Unlock()

		if !e.sem.TryAcquire(1) {
			e.mu.Lock()
			e.queue = append([]*Task{task}, e.queue...)
			e.mu.Unlock()
			return
		}

		e.dispatchTask(ctx, task)
	}
}

type depStatus int

const (
	depReady depStatus = iota
	depPending
	depFailed
)

// dependencyStatusLocked must be called with e.mu held.
func (e *Engine) dependencyStatusLocked(task *Task) depStatus {
	for _, depID := range task.Dependencies {
		result, done := e.completed[depID]
		if !done {
			return depPending
		}
		if !result.Success {
			return depFailed
		}
	}
	return depReady
}

func (e *Engine) publish(action string, task *Task) {
	if e.bus == nil {
		return
	}
	var entityType types.EntityType
	switch task.Kind {
	case TaskKindIssue:
		entityType = types.EntityTypeIssue
	case TaskKindSpec:
		entityType = types.EntityTypeSpec
	}
	entityUUID, _ := uuid.Parse(task.EntityID)
	e.bus.Publish(context.Background(), types.Event{
		EntityUUID: entityUUID,
		EntityType: entityType,
		Action:     action,
		Source:     "engine",
		Detail:     fmt.Sprintf(`{"task_id":%q,"kind":%q}`, task.ID, task.Kind),
		CreatedAt:  e.now(),
	})
}

// Cancel terminates a running task's subprocess, or removes a queued
// task outright. It is a no-op for an already-completed task.
func (e *Engine) Cancel(id string) error {
	e.mu.Lock()
	if _, done := e.completed[id]; done {
		e.mu.Unlock()
		return nil
	}
	if running, ok := e.running[id]; ok {
		e.mu.Unlock()
		running.cancel()
		return e.pm.Terminate(running.processID)
	}
	for i, t := range e.queue {
		if t.ID == id {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			e.mu.Unlock()
			e.failTask(t, fmt.Errorf("engine: %s: cancelled before dispatch", id))
			return nil
		}
	}
	e.mu.Unlock()
	return fmt.Errorf("%s: %w", id, ErrUnknownTask)
}

// Status returns the current Result for a completed task, if any.
func (e *Engine) Status(id string) (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.completed[id]
	if !ok {
		return Result{}, false
	}
	return *r, true
}

// Await blocks until id completes (or ctx is cancelled), resolving
// immediately if it already has.
func (e *Engine) Await(ctx context.Context, id string) (Result, error) {
	e.mu.Lock()
	if r, ok := e.completed[id]; ok {
		e.mu.Unlock()
		return *r, nil
	}
	ch := make(chan Result, 1)
	e.waiters[id] = append(e.waiters[id], ch)
	e.mu.Unlock()

	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Metrics returns a snapshot of the engine's counters.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	var avg time.Duration
	if e.totalCompleted+e.totalFailed > 0 {
		avg = e.totalDuration / time.Duration(e.totalCompleted+e.totalFailed)
	}
	var successRate float64
	if e.totalCompleted+e.totalFailed > 0 {
		successRate = float64(e.totalCompleted) / float64(e.totalCompleted+e.totalFailed)
	}
	elapsedMinutes := e.now().Sub(e.startedAt).Minutes()
	var throughput float64
	if elapsedMinutes > 0 {
		throughput = float64(e.totalCompleted) / elapsedMinutes
	}

	return Metrics{
		MaxConcurrent:    int(e.maxConcurrent),
		CurrentlyRunning: len(e.running),
		AvailableSlots:   int(e.maxConcurrent) - len(e.running),
		Queued:           len(e.queue),
		Completed:        e.totalCompleted,
		Failed:           e.totalFailed,
		AvgDuration:      avg,
		SuccessRate:      successRate,
		Throughput:       throughput,
		ProcessesSpawned: e.processesSpawned,
		ProcessesActive:  len(e.running),
	}
}

// dispatchTask reserves the semaphore slot acquired by the caller and
// spawns task's subprocess, wiring its hybrid output through a
// dedicated coalesce.Coalescer.
func (e *Engine) dispatchTask(ctx context.Context, task *Task) {
	taskCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.running[task.ID] = &runningTask{task: task, startedAt: e.now(), cancel: cancel}
	e.processesSpawned++
	e.mu.Unlock()

	e.publish("execution:started", task)

	co := coalesce.New()
	var outMu sync.Mutex
	var output []string
	var toolCalls int

	pid, err := e.pm.Spawn(taskCtx, process.Config{
		Argv:    task.Argv,
		Dir:     task.WorkDir,
		Env:     task.Config.Env,
		Timeout: task.Config.Timeout,
		Hybrid:  true,
		OnEvent: func(raw coalesce.RawEvent) {
			records := co.Feed(raw)
			outMu.Lock()
			for _, rec := range records {
				if rec.Kind == coalesce.RecordMessage {
					output = append(output, rec.Content)
				}
				if rec.Kind == coalesce.RecordToolCall {
					toolCalls++
				}
			}
			outMu.Unlock()
		},
		OnExit: func(rec process.Record) {
			final := co.Flush()
			outMu.Lock()
			for _, r := range final {
				if r.Kind == coalesce.RecordMessage {
					output = append(output, r.Content)
				}
				if r.Kind == coalesce.RecordToolCall {
					toolCalls++
				}
			}
			combined := joinStrings(output)
			outMu.Unlock()
			cancel()
			e.sem.Release(1)
			e.completeTask(task, rec, combined, toolCalls)
		},
	})
	if err != nil {
		cancel()
		e.sem.Release(1)
		e.mu.Lock()
		delete(e.running, task.ID)
		e.mu.Unlock()
		logrus.WithField("task_id", task.ID).WithError(err).Warn("spawn failed")
		e.failTaskWithRetry(task, fmt.Errorf("%s: %w", task.ID, err))
		return
	}

	e.mu.Lock()
	if running, ok := e.running[task.ID]; ok {
		running.processID = pid
	}
	e.mu.Unlock()
}

func joinStrings(parts []string) string {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return string(out)
}

func (e *Engine) completeTask(task *Task, rec process.Record, output string, toolCalls int) {
	e.mu.Lock()
	running, ok := e.running[task.ID]
	delete(e.running, task.ID)
	e.mu.Unlock()

	startedAt := task.CreatedAt
	if ok {
		startedAt = running.startedAt
	}

	success := rec.Status == process.StatusCompleted
	exitCode := 0
	if rec.ExitCode != nil {
		exitCode = *rec.ExitCode
	}

	result := Result{
		TaskID:      task.ID,
		Success:     success,
		ExitCode:    exitCode,
		Output:      output,
		Metadata:    map[string]interface{}{"tool_calls": toolCalls},
		Attempt:     task.attempt,
		StartedAt:   startedAt,
		CompletedAt: e.now(),
	}

	if success {
		e.recordCompletion(task, result, "execution:completed")
		e.signalWake()
		return
	}

	if task.attempt < task.Config.MaxRetries {
		e.retry(task)
		e.signalWake()
		return
	}

	result.Err = fmt.Errorf("engine: %s: task failed with exit code %d", task.ID, exitCode)
	e.recordCompletion(task, result, "execution:failed")
	e.signalWake()
}

// failTask records an immediate, non-retryable failure (dependency
// failure, cancellation before dispatch, shutdown drain).
func (e *Engine) failTask(task *Task, err error) {
	result := Result{
		TaskID:      task.ID,
		Success:     false,
		Attempt:     task.attempt,
		StartedAt:   task.CreatedAt,
		CompletedAt: e.now(),
		Err:         err,
	}
	e.recordCompletion(task, result, "execution:failed")
}

// failTaskWithRetry is used for spawn failures, which are retry-eligible
// (spec 7: "Task fails after its retry policy is exhausted").
func (e *Engine) failTaskWithRetry(task *Task, err error) {
	if task.attempt < task.Config.MaxRetries {
		e.retry(task)
		e.signalWake()
		return
	}
	result := Result{
		TaskID:      task.ID,
		Success:     false,
		Attempt:     task.attempt,
		StartedAt:   task.CreatedAt,
		CompletedAt: e.now(),
		Err:         err,
	}
	e.recordCompletion(task, result, "execution:failed")
}

// retry pushes a copy of task, with its attempt counter incremented,
// to the literal head of the queue. Completed-map entries are not
// written for the failed attempt being retried — only the eventual
// terminal outcome is recorded (spec 4.H).
func (e *Engine) retry(task *Task) {
	next := *task
	next.attempt++
	logrus.WithField("task_id", task.ID).WithField("attempt", next.attempt).Info("retrying task")
	e.pushToHead(&next)
}

func (e *Engine) recordCompletion(task *Task, result Result, action string) {
	e.mu.Lock()
	e.completed[task.ID] = &result
	if result.Success {
		e.totalCompleted++
	} else {
		e.totalFailed++
	}
	e.totalDuration += result.CompletedAt.Sub(result.StartedAt)
	waiters := e.waiters[task.ID]
	delete(e.waiters, task.ID)
	e.mu.Unlock()

	for _, ch := range waiters {
		ch <- result
	}
	e.publish(action, task)
}
