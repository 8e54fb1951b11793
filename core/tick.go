package core

// Tick counts hardware timer interrupts since boot. The counter is a
// process-wide singleton: it starts at zero, never decreases, and is
// incremented exactly once per interrupt by the tick handler. Every other
// context is a reader and goes through Now.
type Tick int64

// TickFrequency is the hardware timer rate in interrupts per second.
// The 16-bit divisor of the interval timer bounds it below and interrupt
// overhead bounds it above.
const TickFrequency = 100

// Cadence intervals for the feedback-priority hooks, in ticks.
const (
	priorityInterval = 4             // running-thread priority recompute
	recalcInterval   = TickFrequency // load average + global recompute
)

// Denominators for the sleep unit conversions.
const (
	millisPerSecond = 1000
	microsPerSecond = 1000 * 1000
	nanosPerSecond  = 1000 * 1000 * 1000
)

// Compile-time configuration checks: each line fails to build when the
// constraint is violated.
const (
	_ uint = TickFrequency - 19   // divisor must fit the 16-bit interval timer
	_ uint = 1000 - TickFrequency // keep interrupt overhead bounded
	// The once-per-second work is reached through the priority-interval
	// branch, so every second mark must also be a priority mark.
	_ uint = -(TickFrequency % priorityInterval)
	// Sub-tick conversions pre-scale both operands by 1000.
	_ uint = -(millisPerSecond % 1000)
	_ uint = -(microsPerSecond % 1000)
	_ uint = -(nanosPerSecond % 1000)
)
