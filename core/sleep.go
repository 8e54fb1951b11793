package core

// SleepTicks suspends the calling thread until at least n ticks have
// elapsed. The wake contract is "no earlier than": the thread is released on
// the first tick at or after the deadline, never before it, with no upper
// bound beyond "the next tick after due".
func SleepTicks(n Tick) {
	checkCanBlock("SleepTicks")
	start := Now()
	sched.SuspendUntil(start + n)
}

// SleepMillis suspends for at least ms milliseconds, yielding the CPU when
// the delay spans whole ticks and busy-waiting when it is sub-tick.
func SleepMillis(ms int64) {
	realTimeSleep(ms, millisPerSecond)
}

// SleepMicros suspends for at least us microseconds.
func SleepMicros(us int64) {
	realTimeSleep(us, microsPerSecond)
}

// SleepNanos suspends for at least ns nanoseconds.
func SleepNanos(ns int64) {
	realTimeSleep(ns, nanosPerSecond)
}

// realTimeSleep sleeps for num/denom seconds.
func realTimeSleep(num, denom int64) {
	// Convert to ticks, rounding down:
	//
	//   (num / denom) s               num * TickFrequency
	//   -------------------------  =  -------------------  ticks.
	//   1 s / TickFrequency ticks            denom
	t := Tick(num * TickFrequency / denom)

	checkCanBlock("sleep")
	if t > 0 {
		// At least one full tick: sleep and yield the CPU to other
		// threads.
		SleepTicks(t)
		return
	}

	// Sub-tick delay: busy-wait for accuracy. Both operands are scaled
	// down by 1000 to keep the multiply from overflowing; every exposed
	// unit keeps its denominator divisible by 1000.
	busyWait(int64(loopsPerTick) * num / 1000 * TickFrequency / (denom / 1000))
}

// checkCanBlock enforces the blocking contract: suspending is only legal
// from thread context with interrupts enabled. Violations corrupt scheduler
// state, so they are fatal rather than reported.
func checkCanBlock(op string) {
	if inInterrupt() {
		panic("core: " + op + " called from tick-handler context")
	}
	if !interruptsEnabled() {
		panic("core: " + op + " called with interrupts disabled")
	}
}
