package core

// Scheduler is the narrow surface the tick core drives. A single
// implementation is bound at init, which breaks the otherwise cyclic
// dependency between the timer and the thread subsystem: the core never
// imports scheduler internals.
//
// Every method except SuspendUntil is invoked from tick-handler context and
// must neither block nor allocate.
type Scheduler interface {
	// AccountTick runs once per tick for scheduling accounting, such as
	// quantum expiry.
	AccountTick()

	// SuspendUntil parks the calling thread until the clock reaches wake.
	// Thread context. It returns only once the thread has been released
	// and rescheduled, at or after wake.
	SuspendUntil(wake Tick)

	// ReleaseDue releases every suspended thread whose wake tick is at or
	// before now.
	ReleaseDue(now Tick)

	// ChargeRunning charges one tick of CPU usage to the running thread.
	ChargeRunning()

	// RecomputeRunning recomputes the running thread's priority from its
	// accumulated usage.
	RecomputeRunning()

	// RecomputeLoadAverage refreshes the system load average.
	RecomputeLoadAverage()

	// RecomputeAll reruns usage decay and priority computation across all
	// threads, after a load-average refresh.
	RecomputeAll()
}

var (
	sched        Scheduler
	feedbackMode bool
)

// Init binds the external scheduler. Call once at boot, before the tick
// source starts and before any sleep API is used.
func Init(s Scheduler) {
	sched = s
}

// SetFeedbackMode switches the feedback-priority cadence hooks on or off.
// Boot-time only: the flag is read from the tick handler without
// synchronization.
func SetFeedbackMode(on bool) {
	feedbackMode = on
}

// FeedbackMode reports whether the feedback-priority hooks are active.
func FeedbackMode() bool {
	return feedbackMode
}
