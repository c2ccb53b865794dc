// Package tasks runs deferred units of work (a dish finishing on the stove)
// once after a real-time delay, on a single background worker that is
// independent of the game clock's tick cadence.
package tasks

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/greenvale/farmsim/server/internal/platform/logger"
	"github.com/greenvale/farmsim/server/internal/platform/metrics"
)

var (
	// ErrCoordinatorClosed is returned by Schedule after Shutdown.
	ErrCoordinatorClosed = errors.New("task coordinator is shut down")
	// ErrUnknownTask is returned for handles the coordinator never issued.
	ErrUnknownTask = errors.New("unknown task")
)

// Func is the payload of a deferred task. A returned error (or a panic) is a
// failure: it is reported, never retried, and nothing is partially granted.
type Func func(ctx context.Context) error

// Handle identifies a scheduled task.
type Handle struct {
	ID uuid.UUID
}

func (h Handle) String() string {
	return h.ID.String()
}

// FailureObserver is told about payloads that failed after their caller returned.
type FailureObserver func(h Handle, label string, err error)

// DefaultHistory is how many settled tasks State and Wait remember.
const DefaultHistory = 1024

// Options tunes a Coordinator.
type Options struct {
	OnFailure FailureObserver
	// History bounds how many settled tasks still answer State and Wait.
	// Older handles report ErrUnknownTask. Zero means DefaultHistory.
	History int
}

type task struct {
	handle  Handle
	label   string
	fn      Func
	fireAt  time.Time
	seq     uint64
	state   State
	index   int
	settled chan struct{}
}

// taskQueue orders by deadline, then by submission sequence.
type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }
func (q taskQueue) Less(i, j int) bool {
	if q[i].fireAt.Equal(q[j].fireAt) {
		return q[i].seq < q[j].seq
	}
	return q[i].fireAt.Before(q[j].fireAt)
}
func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *taskQueue) Push(x any) {
	t := x.(*task)
	t.index = len(*q)
	*q = append(*q, t)
}
func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// Coordinator schedules deferred tasks onto one worker goroutine.
type Coordinator struct {
	logger  *logger.Logger
	metrics *metrics.Collector
	onFail  FailureObserver

	mu      sync.Mutex
	queue   taskQueue
	tasks   map[uuid.UUID]*task
	recent  *lru.Cache[uuid.UUID, State]
	seq     uint64
	closed  bool
	wake    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}

	now func() time.Time
}

// NewCoordinator starts the worker goroutine.
func NewCoordinator(log *logger.Logger, m *metrics.Collector, opts Options) *Coordinator {
	history := opts.History
	if history <= 0 {
		history = DefaultHistory
	}
	recent, _ := lru.New[uuid.UUID, State](history)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		logger:  log,
		metrics: m,
		onFail:  opts.OnFailure,
		tasks:   make(map[uuid.UUID]*task),
		recent:  recent,
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
		now:     time.Now,
	}
	go c.run()
	return c
}

// SetFailureObserver replaces the failure observer.
func (c *Coordinator) SetFailureObserver(fn FailureObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFail = fn
}

// Schedule registers fn to run once after delay. It never blocks on the payload.
// Tasks with equal deadlines fire in submission order.
func (c *Coordinator) Schedule(label string, fn Func, delay time.Duration) (Handle, error) {
	if fn == nil {
		return Handle{}, fmt.Errorf("task %q has no payload", label)
	}
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Handle{}, ErrCoordinatorClosed
	}
	c.seq++
	t := &task{
		handle:  Handle{ID: uuid.New()},
		label:   label,
		fn:      fn,
		fireAt:  c.now().Add(delay),
		seq:     c.seq,
		state:   StateScheduled,
		settled: make(chan struct{}),
	}
	heap.Push(&c.queue, t)
	c.tasks[t.handle.ID] = t
	c.mu.Unlock()

	c.metrics.RecordTaskScheduled()
	c.logger.Event("TASK_SCHEDULED", label, fmt.Sprintf("%s fires in %s", t.handle, delay))
	c.signal()
	return t.handle, nil
}

// Cancel withdraws a task that has not started. It reports whether the task
// was cancelled; a running, finished or abandoned task is left as is.
func (c *Coordinator) Cancel(h Handle) bool {
	c.mu.Lock()
	t, ok := c.tasks[h.ID]
	if !ok || !t.state.CanTransition(StateCancelled) {
		c.mu.Unlock()
		return false
	}
	heap.Remove(&c.queue, t.index)
	c.retireLocked(t, StateCancelled)
	close(t.settled)
	c.mu.Unlock()

	c.metrics.RecordTaskCancelled()
	c.logger.Event("TASK_CANCELLED", t.label, h.String())
	c.signal()
	return true
}

// State returns the lifecycle state of a task. Settled tasks are answered
// from a bounded history.
func (c *Coordinator) State(h Handle) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tasks[h.ID]; ok {
		return t.state, nil
	}
	if s, ok := c.recent.Peek(h.ID); ok {
		return s, nil
	}
	return "", ErrUnknownTask
}

// Wait blocks until the task reaches a terminal state or ctx ends.
func (c *Coordinator) Wait(ctx context.Context, h Handle) (State, error) {
	c.mu.Lock()
	t, ok := c.tasks[h.ID]
	if !ok {
		s, settled := c.recent.Peek(h.ID)
		c.mu.Unlock()
		if !settled {
			return "", ErrUnknownTask
		}
		return s, nil
	}
	c.mu.Unlock()

	select {
	case <-t.settled:
		c.mu.Lock()
		defer c.mu.Unlock()
		return t.state, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Tracked counts tasks the coordinator still holds: queued or running.
func (c *Coordinator) Tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

// retireLocked moves a task into its terminal state and out of the live set.
// Only its state is remembered. Callers hold c.mu and close t.settled.
func (c *Coordinator) retireLocked(t *task, s State) {
	t.state = s
	t.fn = nil
	delete(c.tasks, t.handle.ID)
	c.recent.Add(t.handle.ID, s)
}

// Pending counts tasks still waiting for their deadline.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Shutdown stops accepting tasks, keeps firing due tasks for up to grace, and
// then abandons whatever is left. A payload still running when grace expires
// has its context cancelled. It returns how many tasks were abandoned.
func (c *Coordinator) Shutdown(grace time.Duration) int {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}
	c.closed = true
	c.mu.Unlock()
	c.signal()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-c.stopped:
	case <-timer.C:
		// A payload that ignores its context keeps running on the worker;
		// it is not waited for.
		c.cancel()
	}

	c.mu.Lock()
	abandoned := make([]*task, 0, len(c.queue))
	for c.queue.Len() > 0 {
		t := heap.Pop(&c.queue).(*task)
		c.retireLocked(t, StateAbandoned)
		close(t.settled)
		abandoned = append(abandoned, t)
	}
	c.mu.Unlock()
	c.cancel()

	for _, t := range abandoned {
		c.metrics.RecordTaskAbandoned()
		c.logger.Event("TASK_ABANDONED", t.label, t.handle.String())
	}
	c.logger.Info("Task coordinator stopped.")
	return len(abandoned)
}

func (c *Coordinator) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// run is the single worker. It sleeps until the earliest deadline, runs that
// task to completion, and repeats. Once closed it exits when the queue drains
// or the shutdown grace expires.
func (c *Coordinator) run() {
	defer close(c.stopped)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		c.mu.Lock()
		if c.ctx.Err() != nil || (c.closed && c.queue.Len() == 0) {
			c.mu.Unlock()
			return
		}

		var next *task
		wait := time.Hour
		if c.queue.Len() > 0 {
			head := c.queue[0]
			if d := head.fireAt.Sub(c.now()); d > 0 {
				wait = d
			} else {
				next = heap.Pop(&c.queue).(*task)
				next.state = StateRunning
			}
		}
		c.mu.Unlock()

		if next != nil {
			c.fire(next)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		case <-timer.C:
		}
	}
}

func (c *Coordinator) fire(t *task) {
	err := c.invoke(t)

	c.mu.Lock()
	if err != nil {
		c.retireLocked(t, StateFailed)
	} else {
		c.retireLocked(t, StateFired)
	}
	onFail := c.onFail
	c.mu.Unlock()
	defer close(t.settled)

	if err != nil {
		c.metrics.RecordTaskFailed()
		c.logger.Error("Deferred task failed: "+t.label, logger.String("task", t.handle.String()), logger.Err(err))
		if onFail != nil {
			onFail(t.handle, t.label, err)
		}
		return
	}
	c.metrics.RecordTaskFired()
	c.logger.Event("TASK_FIRED", t.label, t.handle.String())
}

func (c *Coordinator) invoke(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return t.fn(c.ctx)
}

// GameDuration converts an in-game duration to the real delay it takes at
// the clock's cadence of minutesPerTick game minutes every tickInterval.
func GameDuration(gameMinutes int, tickInterval time.Duration, minutesPerTick int) time.Duration {
	if minutesPerTick <= 0 {
		return 0
	}
	return time.Duration(gameMinutes) * tickInterval / time.Duration(minutesPerTick)
}
