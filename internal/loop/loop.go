// Package loop runs every game mutation on one logical thread.
//
// Timers fire in due-time order (ties in scheduling order). Direct calls made
// through Do are serialized with timer callbacks, so a callback never
// observes another one half-applied. A task removed with Cancel or CancelAll
// is guaranteed not to run afterwards.
package loop

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrStopped = errors.New("loop: stopped")

type Clock interface {
	Now() time.Time
}

type TaskID uint64

type task struct {
	id    TaskID
	due   time.Time
	every time.Duration
	seq   uint64
	fn    func()
	name  string
	index int
}

type Loop struct {
	clock  Clock
	logger *slog.Logger

	// exec is held while any callback runs.
	exec sync.Mutex

	mu      sync.Mutex
	queue   taskQueue
	tasks   map[TaskID]*task
	nextID  TaskID
	seq     uint64
	stopped bool
	wake    chan struct{}
}

func New(clock Clock, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		clock:  clock,
		logger: logger,
		tasks:  map[TaskID]*task{},
		wake:   make(chan struct{}, 1),
	}
}

// After schedules fn to run once, d from now. It returns 0 once the loop
// is stopped.
func (l *Loop) After(name string, d time.Duration, fn func()) TaskID {
	return l.schedule(name, d, 0, fn)
}

// Every schedules fn to run every d. A run that falls behind is not
// repeated; the next one is scheduled d after the current time.
func (l *Loop) Every(name string, d time.Duration, fn func()) TaskID {
	if d <= 0 {
		panic("loop: non-positive interval for " + name)
	}
	return l.schedule(name, d, d, fn)
}

func (l *Loop) schedule(name string, d, every time.Duration, fn func()) TaskID {
	if d < 0 {
		d = 0
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return 0
	}
	l.nextID++
	l.seq++
	t := &task{
		id:    l.nextID,
		due:   l.clock.Now().Add(d),
		every: every,
		seq:   l.seq,
		fn:    fn,
		name:  name,
	}
	l.tasks[t.id] = t
	heap.Push(&l.queue, t)
	l.mu.Unlock()

	l.signal()
	return t.id
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Cancel removes a pending task. It reports whether the task was pending.
func (l *Loop) Cancel(id TaskID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tasks[id]
	if !ok {
		return false
	}
	delete(l.tasks, id)
	heap.Remove(&l.queue, t.index)
	return true
}

// CancelAll drops every pending task.
func (l *Loop) CancelAll() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.tasks)
	l.tasks = map[TaskID]*task{}
	l.queue = nil
	return n
}

func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Scheduled reports whether id is still waiting to run.
func (l *Loop) Scheduled(id TaskID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.tasks[id]
	return ok
}

// Do runs fn serialized with all timer callbacks. It must not be called from
// inside a callback.
func (l *Loop) Do(fn func()) error {
	l.exec.Lock()
	defer l.exec.Unlock()
	if l.isStopped() {
		return ErrStopped
	}
	fn()
	return nil
}

func (l *Loop) isStopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// RunDue runs every task due at the clock's current time and returns how
// many ran. Tests drive the loop with this and a fake clock.
func (l *Loop) RunDue() int {
	n := 0
	for {
		l.exec.Lock()
		t := l.popDue(l.clock.Now())
		if t == nil {
			l.exec.Unlock()
			return n
		}
		l.runTask(t)
		l.exec.Unlock()
		n++
	}
}

func (l *Loop) runTask(t *task) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error("loop task panicked", "task", t.name, "panic", rec)
		}
	}()
	t.fn()
}

// popDue removes the earliest due task. Periodic tasks are re-queued under
// the same id before they run, so a callback may cancel itself.
func (l *Loop) popDue(now time.Time) *task {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 || l.queue[0].due.After(now) {
		return nil
	}
	t := heap.Pop(&l.queue).(*task)
	if t.every <= 0 {
		delete(l.tasks, t.id)
		return t
	}
	next := *t
	next.due = t.due.Add(t.every)
	if !next.due.After(now) {
		next.due = now.Add(t.every)
	}
	l.seq++
	next.seq = l.seq
	l.tasks[t.id] = &next
	heap.Push(&l.queue, &next)
	return t
}

// NextDue is the due time of the earliest pending task.
func (l *Loop) NextDue() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return time.Time{}, false
	}
	return l.queue[0].due, true
}

// Run executes due tasks until ctx is done or Stop is called. It expects a
// clock that follows wall time.
func (l *Loop) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		l.RunDue()
		if l.isStopped() {
			return ErrStopped
		}

		wait := time.Hour
		if due, ok := l.NextDue(); ok {
			wait = due.Sub(l.clock.Now())
			if wait < 0 {
				wait = 0
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		case <-timer.C:
		}
	}
}

// Stop cancels everything pending and refuses new work.
func (l *Loop) Stop() {
	l.exec.Lock()
	l.mu.Lock()
	l.stopped = true
	l.tasks = map[TaskID]*task{}
	l.queue = nil
	l.mu.Unlock()
	l.exec.Unlock()
	l.signal()
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
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
