//go:build !tinygo

package core

import "sync/atomic"

var barrierSink uint32

// barrier orders the code around it: the compiler may not elide the atomic
// add, cache tick reads across it, or fold busy-wait iterations together.
func barrier() {
	atomic.AddUint32(&barrierSink, 1)
}
