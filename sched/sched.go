// Package sched is a reference scheduler for the tick core: a fixed table
// of cooperatively scheduled threads with the sleep and feedback-priority
// hooks the core's tick handler drives.
//
// Each thread runs on its own goroutine, but exactly one runs at a time: a
// single token passes between the dispatch loop and the running thread over
// unbuffered channels, so scheduler state only ever has one writer and
// needs no locks. Between dispatches the loop holds the token, which is
// where tick handling runs on hosted builds.
package sched

import "gotick/core"

const (
	// MaxThreads bounds the thread table; nothing allocates past Spawn.
	MaxThreads = 16

	// MaxSleepers bounds the sleep queue. Every thread can sleep at once.
	MaxSleepers = MaxThreads

	// timeSlice is the quantum in ticks before a reschedule is requested.
	timeSlice = 4
)

// State is a thread's scheduling state.
type State uint8

const (
	StateUnused State = iota
	StateReady
	StateRunning
	StateSleeping
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUnused:
		return "unused"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

type thread struct {
	id    int
	name  string
	state State

	nice      int
	recentCPU fixed
	priority  int

	fn     func()
	resume chan struct{}
}

// Scheduler implements the tick core's scheduling hooks over a fixed
// thread table.
//
// Ownership follows the token: Step and the tick-handler hooks run in the
// dispatch loop's context, Yield and SuspendUntil in the running thread's.
// Nothing may be called concurrently from outside those two.
type Scheduler struct {
	threads [MaxThreads]thread
	count   int

	rr      int     // round-robin cursor for equal priorities
	current *thread // set while a thread holds the token
	lastRun *thread // most recently dispatched thread

	returned chan struct{} // thread -> loop token handoff

	sleepers sleepQueue

	loadAvg     fixed
	sliceTicks  int
	needResched bool
}

var _ core.Scheduler = (*Scheduler)(nil)

// New returns an empty scheduler. Bind it with core.Init before the first
// tick fires.
func New() *Scheduler {
	return &Scheduler{returned: make(chan struct{})}
}

// Spawn registers fn as a thread and starts its goroutine parked. The
// thread first runs when the dispatch loop picks it.
func (s *Scheduler) Spawn(name string, nice int, fn func()) int {
	if s.count >= MaxThreads {
		panic("sched: thread table full")
	}

	t := &s.threads[s.count]
	t.id = s.count
	t.name = name
	t.nice = clampNice(nice)
	t.fn = fn
	t.resume = make(chan struct{})
	t.state = StateReady
	if core.FeedbackMode() {
		t.priority = s.feedbackPriority(t)
	} else {
		t.priority = priDefault
	}
	s.count++

	go s.trampoline(t)
	return t.id
}

func (s *Scheduler) trampoline(t *thread) {
	<-t.resume
	t.fn()
	t.state = StateDone
	s.returned <- struct{}{}
}

// Step makes one scheduling decision: dispatch the best ready thread and
// wait for it to yield, sleep, or finish. It reports whether any thread
// ran, so callers can idle when it returns false.
func (s *Scheduler) Step() bool {
	t := s.pickNext()
	if t == nil {
		return false
	}

	s.sliceTicks = 0
	s.needResched = false
	t.state = StateRunning
	s.current = t
	s.lastRun = t

	t.resume <- struct{}{}
	<-s.returned

	s.current = nil
	return true
}

// pickNext scans from the round-robin cursor for the highest-priority
// ready thread. Strict comparison keeps equal priorities rotating fairly.
func (s *Scheduler) pickNext() *thread {
	var best *thread
	bestAt := -1
	for i := 0; i < s.count; i++ {
		idx := (s.rr + i) % s.count
		t := &s.threads[idx]
		if t.state != StateReady {
			continue
		}
		if best == nil || t.priority > best.priority {
			best = t
			bestAt = idx
		}
	}
	if best != nil {
		s.rr = (bestAt + 1) % s.count
	}
	return best
}

// Yield hands the processor back to the dispatch loop, leaving the calling
// thread ready. It returns when the thread is next dispatched.
func (s *Scheduler) Yield() {
	if s.current == nil {
		panic("sched: Yield outside a thread")
	}
	s.yieldCurrent(StateReady)
}

// ShouldYield reports whether the current quantum has expired. A thread in
// a long computation polls it and calls Yield at a convenient boundary;
// nothing preempts it otherwise.
func (s *Scheduler) ShouldYield() bool { return s.needResched }

func (s *Scheduler) yieldCurrent(st State) {
	t := s.current
	t.state = st
	s.returned <- struct{}{}
	<-t.resume
}

// SuspendUntil parks the calling thread until the clock reaches wake. Part
// of the core.Scheduler contract: it does not return before that tick.
func (s *Scheduler) SuspendUntil(wake core.Tick) {
	if s.current == nil {
		panic("sched: SuspendUntil outside a thread")
	}
	s.sleepers.add(s.current, wake)
	s.yieldCurrent(StateSleeping)
}

// ReleaseDue readies every sleeper whose wake tick has arrived. Runs in
// tick-handler context: no blocking, no allocation, no dispatching.
func (s *Scheduler) ReleaseDue(now core.Tick) {
	s.sleepers.releaseDue(now)
}

// AccountTick charges the elapsed tick against the running thread's
// quantum. Idle ticks leave the quantum untouched.
func (s *Scheduler) AccountTick() {
	if s.runningThread() == nil {
		return
	}
	s.sliceTicks++
	if s.sliceTicks >= timeSlice {
		s.needResched = true
	}
}

// runningThread is the thread the elapsed tick belongs to: the one holding
// the token, or between dispatches the one that ran last and is still
// runnable. Nil means the tick was idle time.
func (s *Scheduler) runningThread() *thread {
	if s.current != nil {
		return s.current
	}
	if t := s.lastRun; t != nil && t.state == StateReady {
		return t
	}
	return nil
}

// Idle reports whether no thread is ready to run.
func (s *Scheduler) Idle() bool {
	for i := 0; i < s.count; i++ {
		if s.threads[i].state == StateReady {
			return false
		}
	}
	return true
}

// Done reports whether every spawned thread has finished.
func (s *Scheduler) Done() bool {
	for i := 0; i < s.count; i++ {
		if s.threads[i].state != StateDone {
			return false
		}
	}
	return true
}

// Info describes one thread for diagnostics.
type Info struct {
	ID           int
	Name         string
	State        State
	Priority     int
	Nice         int
	RecentCPU100 int
}

// Threads returns a diagnostic snapshot of the thread table.
func (s *Scheduler) Threads() []Info {
	out := make([]Info, s.count)
	for i := 0; i < s.count; i++ {
		t := &s.threads[i]
		out[i] = Info{
			ID:           t.id,
			Name:         t.name,
			State:        t.state,
			Priority:     t.priority,
			Nice:         t.nice,
			RecentCPU100: t.recentCPU.mulInt(100).round(),
		}
	}
	return out
}
