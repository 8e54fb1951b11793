//go:build tinygo

package core

// The target has no guaranteed atomic 64-bit load, so the tick cell is a
// plain word: the handler owns the only write and Now's critical section
// covers every cross-context read.
var tickCount Tick

func loadTicks() Tick {
	return tickCount
}

// advanceTicks adds one tick. Tick-handler context only.
func advanceTicks() Tick {
	tickCount++
	return tickCount
}
