package core

// Stats counts tick-handler activity for diagnostics. Written only from
// handler context; snapshots go through HandlerStats.
type Stats struct {
	Ticks              int64 // interrupts handled
	PriorityRecomputes int64 // running-thread recomputes fired
	GlobalRecomputes   int64 // load-average/global recomputes fired
}

var stats Stats

// TickInterrupt is the timer interrupt handler: the platform tick source
// invokes it exactly once per hardware tick.
//
// The ordering within one invocation is fixed: the clock advances first,
// then per-tick accounting, then the cadence recomputes. Sleepers are
// released last so they are scheduled with up-to-date priorities.
func TickInterrupt() {
	prev := enterHandler()

	t := advanceTicks()
	stats.Ticks++

	sched.AccountTick()

	if feedbackMode {
		sched.ChargeRunning()
		if t%priorityInterval == 0 {
			sched.RecomputeRunning()
			stats.PriorityRecomputes++
			if t%recalcInterval == 0 {
				sched.RecomputeLoadAverage()
				sched.RecomputeAll()
				stats.GlobalRecomputes++
			}
		}
	}

	sched.ReleaseDue(t)

	leaveHandler(prev)
}

// HandlerStats returns a snapshot of the handler counters.
func HandlerStats() Stats {
	state := disableInterrupts()
	s := stats
	restoreInterrupts(state)
	return s
}

// ResetStats zeroes the handler counters. Diagnostic surface only; the
// clock itself is never rewound.
func ResetStats() {
	state := disableInterrupts()
	stats = Stats{}
	restoreInterrupts(state)
}

// PrintStats reports the current tick count through the debug writer.
func PrintStats() {
	debugPrint("Timer: " + itoa(int64(Now())) + " ticks")
}
