//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"gotick/core"
)

// RP2040 TIMER peripheral: a 64-bit free-running microsecond counter with
// four 32-bit alarm comparators matched against the low word.
const (
	timerBase   = 0x40054000
	regALARM0   = timerBase + 0x10
	regTIMERAWH = timerBase + 0x24
	regTIMERAWL = timerBase + 0x28
	regINTR     = timerBase + 0x34
	regINTE     = timerBase + 0x38
)

var (
	alarm0    = (*volatile.Register32)(unsafe.Pointer(uintptr(regALARM0)))
	timerawh  = (*volatile.Register32)(unsafe.Pointer(uintptr(regTIMERAWH)))
	timerawl  = (*volatile.Register32)(unsafe.Pointer(uintptr(regTIMERAWL)))
	timerint  = (*volatile.Register32)(unsafe.Pointer(uintptr(regINTR)))
	timerinte = (*volatile.Register32)(unsafe.Pointer(uintptr(regINTE)))
)

// timerNow reads the 64-bit microsecond counter. The raw registers are
// unlatched, so the high word is sampled on both sides of the low word
// and the read retried if a rollover landed between the samples.
func timerNow() uint64 {
	for {
		hi := timerawh.Get()
		lo := timerawl.Get()
		if timerawh.Get() == hi {
			return uint64(hi)<<32 | uint64(lo)
		}
	}
}

// nextAlarm is the absolute low-word deadline of the pending tick.
var nextAlarm uint32

// startTickAlarm arms ALARM0 to deliver the tick interrupt at the tick
// frequency.
func startTickAlarm() {
	ti := interrupt.New(rp.IRQ_TIMER_IRQ_0, tickAlarm)
	nextAlarm = timerawl.Get() + tickIntervalUS
	alarm0.Set(nextAlarm)
	timerinte.SetBits(1 << 0)
	ti.Enable()
}

// tickAlarm services ALARM0. It acknowledges the interrupt, runs the tick
// work, then re-arms one interval past the previous deadline so the
// long-run rate holds. A deadline that already passed steps from now
// instead of bursting to catch up.
func tickAlarm(interrupt.Interrupt) {
	timerint.Set(1 << 0)

	core.TickInterrupt()

	nextAlarm += tickIntervalUS
	if now := timerawl.Get(); int32(nextAlarm-now) <= 0 {
		nextAlarm = now + tickIntervalUS
	}
	alarm0.Set(nextAlarm)
}
