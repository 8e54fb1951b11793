package core

// busyWait iterates a simple countdown loop, for implementing brief delays.
//
// Marked noinline: code alignment measurably affects loop timing, and if the
// compiler inlined this differently at different call sites the calibrated
// loop cost would stop matching the measured one.
//
//go:noinline
func busyWait(loops int64) {
	for loops > 0 {
		loops--
		barrier()
	}
}
