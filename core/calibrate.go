package core

// loopsPerTick is the busy-wait iteration count that reliably completes
// within a single tick. Written once by Calibrate, read-only afterward.
var loopsPerTick uint32

// Calibrate measures loopsPerTick. It runs once at boot from thread context,
// with interrupts enabled and ticks already flowing, before anything relies
// on sub-tick delays. There is no recovery path: a factor that overflows its
// word means the hardware is far faster than this build assumes, and boot
// cannot continue.
func Calibrate() {
	if !interruptsEnabled() {
		panic("core: Calibrate requires interrupts enabled")
	}
	debugPrint("Calibrating timer...")

	loopsPerTick = calibrateLoops(tooManyLoops)

	debugPrint("Calibrated: " + utoa(uint64(loopsPerTick)*TickFrequency) + " loops/s")
}

// calibrateLoops runs the calibration against the supplied trial, which
// reports whether a loop count overruns one tick.
func calibrateLoops(tooMany func(loops uint32) bool) uint32 {
	// Approximate the factor as the largest power of two that still
	// completes within one tick.
	loops := uint32(1) << 10
	for !tooMany(loops << 1) {
		loops <<= 1
		if loops == 0 {
			panic("core: calibration factor overflow")
		}
	}

	// Refine the next bits, most significant first. Each trial tests the
	// power-of-two bound plus a single candidate bit, so the factor only
	// ever grows.
	highBit := loops
	for testBit := highBit >> 1; testBit != highBit>>10; testBit >>= 1 {
		if !tooMany(highBit | testBit) {
			loops |= testBit
		}
	}

	return loops
}

// tooManyLoops reports whether loops busy-wait iterations overrun one tick.
// It waits for a fresh tick edge first so every trial gets a full tick to
// run in.
func tooManyLoops(loops uint32) bool {
	start := Now()
	for Now() == start {
		barrier()
	}

	start = Now()
	busyWait(int64(loops))

	barrier()
	return Now() != start
}

// LoopsPerTick returns the calibration factor, or zero before Calibrate has
// run.
func LoopsPerTick() uint32 {
	return loopsPerTick
}
