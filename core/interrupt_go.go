//go:build !tinygo

package core

import "sync/atomic"

// Hosted builds have no interrupt controller, so the enable flag is modeled.
// The model keeps the blocking contracts enforceable off-hardware: sleeping
// with the flag cleared, or from inside the tick handler, trips the same
// fatal checks a target build would.

// IntrState records the enable flag captured by disableInterrupts.
type IntrState struct {
	wasEnabled bool
}

var (
	intrMasked atomic.Bool // modeled interrupt-disable flag
	inHandler  atomic.Bool // set while TickInterrupt runs
)

// disableInterrupts masks interrupt delivery and returns the prior state.
func disableInterrupts() IntrState {
	return IntrState{wasEnabled: !intrMasked.Swap(true)}
}

// restoreInterrupts returns the mask to the state disableInterrupts saw.
func restoreInterrupts(state IntrState) {
	if state.wasEnabled {
		intrMasked.Store(false)
	}
}

// interruptsEnabled reports the modeled enable flag.
func interruptsEnabled() bool {
	return !intrMasked.Load()
}

func enterHandler() bool {
	return inHandler.Swap(true)
}

func leaveHandler(prev bool) {
	inHandler.Store(prev)
}

// inInterrupt reports whether the caller executes in tick-handler context.
func inInterrupt() bool {
	return inHandler.Load()
}
