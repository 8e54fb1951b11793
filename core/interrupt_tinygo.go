//go:build tinygo

package core

import "runtime/interrupt"

// IntrState is the hardware interrupt state captured by disableInterrupts.
type IntrState = interrupt.State

// maskDepth shadows critical-section nesting. Single core: every writer runs
// with interrupts already masked, so a plain counter is safe. Masking done
// behind the runtime's back is invisible to the shadow.
var maskDepth int

var handlerActive bool

// disableInterrupts masks interrupt delivery and returns the prior state.
func disableInterrupts() IntrState {
	state := interrupt.Disable()
	maskDepth++
	return state
}

// restoreInterrupts returns the mask to the state disableInterrupts saw.
func restoreInterrupts(state IntrState) {
	maskDepth--
	interrupt.Restore(state)
}

// interruptsEnabled reports whether the caller holds no critical section.
func interruptsEnabled() bool {
	return maskDepth == 0
}

func enterHandler() bool {
	prev := handlerActive
	handlerActive = true
	return prev
}

func leaveHandler(prev bool) {
	handlerActive = prev
}

// inInterrupt reports tick-handler context; a genuine ISR also counts.
func inInterrupt() bool {
	return handlerActive || interrupt.In()
}
