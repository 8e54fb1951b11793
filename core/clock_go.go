//go:build !tinygo

package core

import "sync/atomic"

// Hosted builds keep the tick cell in an atomic so a simulator may drive the
// tick source from a separate goroutine during boot. The critical section in
// Now still models the target's read contract.
var tickCount atomic.Int64

func loadTicks() Tick {
	return Tick(tickCount.Load())
}

// advanceTicks adds one tick. Tick-handler context only.
func advanceTicks() Tick {
	return Tick(tickCount.Add(1))
}

// setTicks rewinds or forwards the clock. Test hook; a live core never
// writes the counter outside advanceTicks.
func setTicks(t Tick) {
	tickCount.Store(int64(t))
}
