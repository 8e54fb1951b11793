//go:build tinygo

package core

import "runtime/volatile"

var barrierSink uint32

// barrier orders the code around it. Volatile accesses are never elided or
// reordered, which keeps tick re-reads and busy-wait iterations from being
// folded away.
func barrier() {
	volatile.StoreUint32(&barrierSink, volatile.LoadUint32(&barrierSink)+1)
}
