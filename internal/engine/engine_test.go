package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/scdev/scd/internal/eventbus"
	"github.com/scdev/scd/internal/process"
	"github.com/scdev/scd/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, maxConcurrent int) (*Engine, context.CancelFunc) {
	t.Helper()
	pm := process.New()
	bus := eventbus.New()
	e := New(pm, bus, maxConcurrent)
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	return e, cancel
}

func newTask(id string, argv []string) *Task {
	return &Task{ID: id, Kind: TaskKindCustom, Argv: argv}
}

func TestSubmitRunsTaskToCompletion(t *testing.T) {
	e, cancel := newTestEngine(t, 1)
	defer cancel()

	task := newTask("t1", []string{"true"})
	e.Submit(task)

	result, err := e.Await(context.Background(), task.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ExitCode)
}

func TestSubmitFailsOnNonZeroExit(t *testing.T) {
	e, cancel := newTestEngine(t, 1)
	defer cancel()

	task := newTask("t1", []string{"false"})
	task.Config.MaxRetries = 0
	e.Submit(task)

	result, err := e.Await(context.Background(), task.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Error(t, result.Err)
}

func TestDependencyFailureFailsDependentTaskWithoutSpawning(t *testing.T) {
	e, cancel := newTestEngine(t, 2)
	defer cancel()

	base := newTask("base", []string{"false"})
	dependent := newTask("dependent", []string{"true"})
	dependent.Dependencies = []string{base.ID}

	e.Submit(dependent)
	e.Submit(base)

	baseResult, err := e.Await(context.Background(), base.ID)
	require.NoError(t, err)
	assert.False(t, baseResult.Success)

	depResult, err := e.Await(context.Background(), dependent.ID)
	require.NoError(t, err)
	assert.False(t, depResult.Success)
	assert.ErrorIs(t, depResult.Err, ErrDependencyFailed)
}

func TestDependencyPendingReQueuesToTailUntilResolved(t *testing.T) {
	e, cancel := newTestEngine(t, 1)
	defer cancel()

	base := newTask("base", []string{"sh", "-c", "sleep 0.2"})
	dependent := newTask("dependent", []string{"true"})
	dependent.Dependencies = []string{base.ID}

	// Submitted before its dependency completes: must be re-queued to the
	// tail rather than dispatched or failed.
	e.Submit(dependent)
	e.Submit(base)

	baseResult, err := e.Await(context.Background(), base.ID)
	require.NoError(t, err)
	assert.True(t, baseResult.Success)

	depResult, err := e.Await(context.Background(), dependent.ID)
	require.NoError(t, err)
	assert.True(t, depResult.Success)
}

func TestBoundedConcurrencyRespectsCap(t *testing.T) {
	e, cancel := newTestEngine(t, 2)
	defer cancel()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		task := newTask("c"+string(rune('0'+i)), []string{"sh", "-c", "sleep 0.1"})
		e.Submit(task)
		ids = append(ids, task.ID)
	}

	for _, id := range ids {
		result, err := e.Await(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, result.Success)
	}

	metrics := e.Metrics()
	assert.Equal(t, 2, metrics.MaxConcurrent)
	assert.Equal(t, 5, metrics.Completed)
}

func TestRetryDominatesPriorityAtQueueHead(t *testing.T) {
	e, cancel := newTestEngine(t, 1)
	defer cancel()

	failing := newTask("failing", []string{"false"})
	failing.Config.MaxRetries = 1

	highPriority := newTask("high-priority", []string{"sh", "-c", "sleep 0.05"})
	highPriority.Priority = 0

	e.Submit(failing)

	// Submitted while failing's retry is about to be pushed to the head;
	// the retry must dispatch before this task despite equal priority.
	time.Sleep(10 * time.Millisecond)
	e.Submit(highPriority)

	failResult, err := e.Await(context.Background(), "failing")
	require.NoError(t, err)

	highResult, err := e.Await(context.Background(), highPriority.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, failResult.Attempt)
	assert.False(t, failResult.Success)
	assert.True(t, highResult.Success)
	assert.True(t, failResult.StartedAt.Before(highResult.StartedAt), "the retry must dispatch before the later-submitted task")
}

func TestCancelQueuedTaskBeforeDispatch(t *testing.T) {
	e, cancel := newTestEngine(t, 1)
	defer cancel()

	blocker := newTask("blocker", []string{"sh", "-c", "sleep 0.3"})
	queued := newTask("queued", []string{"true"})

	e.Submit(blocker)
	e.Submit(queued)
	require.NoError(t, e.Cancel(queued.ID))

	result, err := e.Await(context.Background(), queued.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)

	_, err = e.Await(context.Background(), blocker.ID)
	require.NoError(t, err)
}

func TestCancelRunningTaskTerminatesItsSubprocess(t *testing.T) {
	e, cancel := newTestEngine(t, 1)
	defer cancel()

	task := newTask("long", []string{"sleep", "30"})
	e.Submit(task)

	deadline := time.Now().Add(2 * time.Second)
	for e.Metrics().CurrentlyRunning == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, e.Cancel(task.ID))

	result, err := e.Await(context.Background(), task.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestCancelUnknownTaskReturnsError(t *testing.T) {
	e, cancel := newTestEngine(t, 1)
	defer cancel()

	err := e.Cancel("no-such-task")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestStatusReflectsCompletedResult(t *testing.T) {
	e, cancel := newTestEngine(t, 1)
	defer cancel()

	task := newTask("status", []string{"true"})
	e.Submit(task)
	_, err := e.Await(context.Background(), task.ID)
	require.NoError(t, err)

	result, ok := e.Status(task.ID)
	require.True(t, ok)
	assert.True(t, result.Success)

	_, ok = e.Status("unknown")
	assert.False(t, ok)
}

func TestAwaitResolvesImmediatelyAfterCompletion(t *testing.T) {
	e, cancel := newTestEngine(t, 1)
	defer cancel()

	task := newTask("already-done", []string{"true"})
	e.Submit(task)
	_, err := e.Await(context.Background(), task.ID)
	require.NoError(t, err)

	result, err := e.Await(context.Background(), task.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestSubmitPublishesLifecycleEvents(t *testing.T) {
	pm := process.New()
	bus := eventbus.New()
	var mu sync.Mutex
	var actions []string
	bus.Register(eventbus.NewHandlerFunc("test", 0, nil, func(_ context.Context, ev types.Event) error {
		mu.Lock()
		actions = append(actions, ev.Action)
		mu.Unlock()
		return nil
	}))
	e := New(pm, bus, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	task := newTask("events", []string{"true"})
	e.Submit(task)
	_, err := e.Await(context.Background(), task.ID)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, actions, "execution:created")
	assert.Contains(t, actions, "execution:started")
	assert.Contains(t, actions, "execution:completed")
}
