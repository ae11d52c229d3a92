package reactive

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Phase separates render work from effects within a flush.
type Phase uint8

const (
	// PhaseRender jobs re-evaluate directives and commit DOM changes.
	PhaseRender Phase = iota
	// PhaseEffect jobs run after the renders queued with them.
	PhaseEffect
)

// Rank orders jobs within one flush: by phase, then tree depth (parents
// before children), then priority, then creation sequence.
type Rank struct {
	Phase    Phase
	Depth    int
	Priority int
	Seq      uint64
}

func (r Rank) less(o Rank) bool {
	if r.Phase != o.Phase {
		return r.Phase < o.Phase
	}
	if r.Depth != o.Depth {
		return r.Depth < o.Depth
	}
	if r.Priority != o.Priority {
		return r.Priority < o.Priority
	}
	return r.Seq < o.Seq
}

// Job is a listener the scheduler can run.
type Job interface {
	Listener
	Run()
	Rank() Rank
	// Drop is called instead of Run when the budget refuses the job.
	Drop()
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithBudget caps re-entrant job runs per flush.
func WithBudget(b *Budget) SchedulerOption {
	return func(s *Scheduler) { s.budget = b }
}

// OnOverflow registers a callback for jobs dropped by the budget.
func OnOverflow(fn func(Job)) SchedulerOption {
	return func(s *Scheduler) { s.onOverflow = fn }
}

// OnFlush registers a callback receiving the duration of each flush that
// did work.
func OnFlush(fn func(time.Duration)) SchedulerOption {
	return func(s *Scheduler) { s.onFlush = fn }
}

// Scheduler batches reactive work. Writes enqueue jobs; nothing re-renders
// until Flush runs on the runtime thread.
type Scheduler struct {
	mu       sync.Mutex
	tasks    []func()
	inflight int
	wake     chan struct{}

	jobs     []Job
	queued   map[uint64]bool
	flushing bool

	budget     *Budget
	onOverflow func(Job)
	onFlush    func(time.Duration)
}

// NewScheduler creates a scheduler with a default budget.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		wake:   make(chan struct{}, 1),
		queued: make(map[uint64]bool),
		budget: NewBudget(BudgetConfig{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue schedules j for the next flush. Must be called on the runtime
// thread.
func (s *Scheduler) Enqueue(j Job) {
	if s.queued[j.ID()] {
		return
	}
	s.queued[j.ID()] = true
	s.jobs = append(s.jobs, j)
	s.signal()
}

// Post queues fn to run on the runtime thread. Safe from any goroutine.
func (s *Scheduler) Post(fn func()) {
	s.mu.Lock()
	s.tasks = append(s.tasks, fn)
	s.mu.Unlock()
	s.signal()
}

// Go runs work on a new goroutine and posts the continuation it returns.
// Wait does not return while work is in flight.
func (s *Scheduler) Go(work func() func()) {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()

	go func() {
		var resume func()
		defer func() {
			s.mu.Lock()
			if resume != nil {
				s.tasks = append(s.tasks, resume)
			}
			s.inflight--
			s.mu.Unlock()
			s.signal()
		}()
		resume = work()
	}()
}

// Pending reports whether tasks, jobs or async work are outstanding.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks) > 0 || s.inflight > 0 || len(s.jobs) > 0
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) drainTasks() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := s.tasks
	s.tasks = nil
	return tasks
}

// Flush runs posted tasks and dirty jobs until nothing is left. A nested
// call from inside a flush returns immediately.
func (s *Scheduler) Flush() {
	if s.flushing {
		return
	}
	s.flushing = true
	defer func() { s.flushing = false }()

	start := time.Now()
	worked := false
	s.budget.ResetTick()

	for {
		if tasks := s.drainTasks(); len(tasks) > 0 {
			worked = true
			for _, task := range tasks {
				task()
			}
			continue
		}
		if len(s.jobs) == 0 {
			break
		}
		worked = true
		batch := s.jobs
		s.jobs = nil
		sort.SliceStable(batch, func(i, j int) bool {
			return batch[i].Rank().less(batch[j].Rank())
		})
		for _, j := range batch {
			delete(s.queued, j.ID())
			if !s.budget.Allow(j.ID()) {
				j.Drop()
				if s.onOverflow != nil {
					s.onOverflow(j)
				}
				continue
			}
			j.Run()
		}
	}

	if worked && s.onFlush != nil {
		s.onFlush(time.Since(start))
	}
}

// Wait flushes until no tasks, jobs or async work remain, or ctx ends.
func (s *Scheduler) Wait(ctx context.Context) error {
	for {
		s.Flush()
		s.mu.Lock()
		idle := len(s.tasks) == 0 && s.inflight == 0
		s.mu.Unlock()
		if idle && len(s.jobs) == 0 {
			return nil
		}
		select {
		case <-s.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run flushes whenever work arrives until ctx ends. The calling goroutine
// becomes the runtime thread.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.Flush()
		select {
		case <-s.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
