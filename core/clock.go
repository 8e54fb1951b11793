package core

// Now returns the current tick count.
//
// The counter is written only by the tick handler, so a thread-context read
// excludes interrupt delivery for its duration: without that the target
// cannot guarantee an untorn load of a 64-bit cell.
func Now() Tick {
	state := disableInterrupts()
	t := loadTicks()
	restoreInterrupts(state)
	barrier()
	return t
}

// Elapsed returns the number of ticks since then, which must be a value
// previously returned by Now. Never negative while the clock holds its
// monotonicity invariant.
func Elapsed(then Tick) Tick {
	return Now() - then
}
