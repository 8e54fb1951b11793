package sched

// Feedback-priority bookkeeping in the 4.4BSD style: thread priority falls
// as its decayed share of processor time rises, weighted by a per-thread
// nice value and the system load average. The tick handler drives the
// cadence; the arithmetic lives here.

const (
	priMin     = 0
	priMax     = 63
	priDefault = 31

	niceMin = -20
	niceMax = 20
)

// fixed is a 17.14 fixed-point number, the precision the priority and load
// formulas are specified in.
type fixed int32

const fixedOne = fixed(1) << 14

func toFixed(n int) fixed { return fixed(n) << 14 }

func (x fixed) mul(y fixed) fixed { return fixed(int64(x) * int64(y) >> 14) }

func (x fixed) div(y fixed) fixed { return fixed((int64(x) << 14) / int64(y)) }

func (x fixed) mulInt(n int) fixed { return x * fixed(n) }

func (x fixed) divInt(n int) fixed { return x / fixed(n) }

// trunc converts to int, rounding toward zero.
func (x fixed) trunc() int { return int(x / fixedOne) }

// round converts to int, rounding to nearest, halves away from zero.
func (x fixed) round() int {
	if x >= 0 {
		return int((x + fixedOne/2) / fixedOne)
	}
	return int((x - fixedOne/2) / fixedOne)
}

// Load-average coefficients: load = (59/60)*load + (1/60)*ready.
var (
	loadDecay  = toFixed(59).div(toFixed(60))
	loadWeight = toFixed(1).div(toFixed(60))
)

func clampNice(nice int) int {
	if nice < niceMin {
		return niceMin
	}
	if nice > niceMax {
		return niceMax
	}
	return nice
}

// feedbackPriority computes priMax - recentCPU/4 - 2*nice, clamped to the
// priority range.
func (s *Scheduler) feedbackPriority(t *thread) int {
	p := priMax - t.recentCPU.divInt(4).trunc() - t.nice*2
	if p < priMin {
		return priMin
	}
	if p > priMax {
		return priMax
	}
	return p
}

// ChargeRunning adds one tick of processor time to the running thread.
// Idle ticks are charged to nobody.
func (s *Scheduler) ChargeRunning() {
	if t := s.runningThread(); t != nil {
		t.recentCPU += fixedOne
	}
}

// RecomputeRunning refreshes the running thread's priority from its
// accumulated processor time.
func (s *Scheduler) RecomputeRunning() {
	if t := s.runningThread(); t != nil {
		t.priority = s.feedbackPriority(t)
	}
}

// RecomputeLoadAverage folds the current ready-thread count into the
// exponentially weighted load average.
func (s *Scheduler) RecomputeLoadAverage() {
	s.loadAvg = s.loadAvg.mul(loadDecay) + loadWeight.mulInt(s.readyCount())
}

// RecomputeAll decays every live thread's processor time by
// 2*load/(2*load+1), folds in its nice value, and recomputes its priority.
func (s *Scheduler) RecomputeAll() {
	twoLoad := s.loadAvg.mulInt(2)
	decay := twoLoad.div(twoLoad + fixedOne)

	for i := 0; i < s.count; i++ {
		t := &s.threads[i]
		if t.state == StateUnused || t.state == StateDone {
			continue
		}
		t.recentCPU = decay.mul(t.recentCPU) + toFixed(t.nice)
		t.priority = s.feedbackPriority(t)
	}
}

// readyCount counts threads competing for the processor right now.
func (s *Scheduler) readyCount() int {
	n := 0
	for i := 0; i < s.count; i++ {
		switch s.threads[i].state {
		case StateReady, StateRunning:
			n++
		}
	}
	return n
}

// SetNice adjusts the calling thread's nice value and recomputes its
// priority immediately.
func (s *Scheduler) SetNice(nice int) {
	t := s.current
	if t == nil {
		panic("sched: SetNice outside a thread")
	}
	t.nice = clampNice(nice)
	t.priority = s.feedbackPriority(t)
}

// LoadAverage100 returns the load average scaled by 100 and rounded, for
// diagnostics.
func (s *Scheduler) LoadAverage100() int {
	return s.loadAvg.mulInt(100).round()
}
