// Package scheduler runs deferred settlement steps from a delay queue.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"chainvault/internal/metrics"
	"chainvault/pkg/utils"

	"github.com/sirupsen/logrus"
)

const (
	defaultMaxAttempts = 5
	defaultBackoff     = time.Second
	defaultMaxBackoff  = time.Minute
	idleWait           = time.Second
)

type TaskID uint64

// Task is one deferred step. A returned error schedules a retry.
type Task func(ctx context.Context) error

type Scheduler struct {
	clock       Clock
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration

	mu     sync.Mutex
	queue  taskHeap
	byID   map[TaskID]*entry
	nextID TaskID
	seq    uint64
	wake   chan struct{}
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithMaxAttempts(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff sets the first retry delay and its cap. Each retry doubles the delay.
func WithBackoff(base, limit time.Duration) Option {
	return func(s *Scheduler) {
		if base > 0 {
			s.backoff = base
		}
		if limit >= base {
			s.maxBackoff = limit
		}
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:       RealClock,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		maxBackoff:  defaultMaxBackoff,
		byID:        make(map[TaskID]*entry),
		wake:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Clock() Clock { return s.clock }

// Schedule queues task to run once delay has elapsed on the scheduler clock.
func (s *Scheduler) Schedule(delay time.Duration, name string, task Task) TaskID {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.push(&entry{id: id, name: name, due: s.clock.Now().Add(delay), task: task})
	s.mu.Unlock()

	s.signal()
	return id
}

// Cancel removes a queued task. It reports false when the task already ran,
// is running, or was never scheduled.
func (s *Scheduler) Cancel(id TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok || e.index < 0 {
		return false
	}
	heap.Remove(&s.queue, e.index)
	delete(s.byID, id)
	metrics.SchedulerPending.Set(float64(len(s.queue)))
	return true
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// RunDue runs every task that is due, including tasks that become due while
// it runs, and returns how many executions happened.
func (s *Scheduler) RunDue(ctx context.Context) int {
	ran := 0
	for {
		e := s.popDue()
		if e == nil {
			return ran
		}
		ran++
		s.execute(ctx, e)
	}
}

// Run processes the queue until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	utils.Logger.Info("scheduler started")
	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		s.RunDue(ctx)

		wait := idleWait
		s.mu.Lock()
		if len(s.queue) > 0 {
			wait = s.queue[0].due.Sub(s.clock.Now())
		}
		s.mu.Unlock()
		if wait > idleWait {
			wait = idleWait
		}
		if wait < 0 {
			wait = 0
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
			utils.Logger.WithField("pending", s.Pending()).Info("scheduler stopped")
			return ctx.Err()
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *Scheduler) push(e *entry) {
	s.seq++
	e.seq = s.seq
	heap.Push(&s.queue, e)
	s.byID[e.id] = e
	metrics.SchedulerPending.Set(float64(len(s.queue)))
}

func (s *Scheduler) popDue() *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 || s.queue[0].due.After(s.clock.Now()) {
		return nil
	}
	e := heap.Pop(&s.queue).(*entry)
	metrics.SchedulerPending.Set(float64(len(s.queue)))
	return e
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) execute(ctx context.Context, e *entry) {
	err := runSafely(ctx, e.task)
	e.attempt++

	fields := logrus.Fields{"task": e.name, "task_id": e.id, "attempt": e.attempt}
	if err == nil {
		s.forget(e.id)
		metrics.SchedulerTasks.WithLabelValues(e.name, "ok").Inc()
		return
	}

	fields["error"] = err.Error()
	if e.attempt >= s.maxAttempts {
		s.forget(e.id)
		metrics.SchedulerTasks.WithLabelValues(e.name, "dropped").Inc()
		utils.Logger.WithFields(fields).Error("deferred task exhausted its retries")
		return
	}

	delay := s.backoffFor(e.attempt)
	fields["retry_in"] = delay.String()
	metrics.SchedulerTasks.WithLabelValues(e.name, "retry").Inc()
	utils.Logger.WithFields(fields).Warn("deferred task failed, retrying")

	s.mu.Lock()
	e.due = s.clock.Now().Add(delay)
	s.push(e)
	s.mu.Unlock()
}

func (s *Scheduler) forget(id TaskID) {
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()
}

func (s *Scheduler) backoffFor(attempt int) time.Duration {
	d := s.backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.maxBackoff {
			return s.maxBackoff
		}
	}
	return d
}

func runSafely(ctx context.Context, task Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return task(ctx)
}
