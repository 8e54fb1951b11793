//go:build rp2040

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"gotick/core"
)

// heartbeatCycles is the state-machine cycle cost of one square-wave
// period: two instructions, each padded with 15 delay cycles.
const heartbeatCycles = 32

const heartbeatOrigin = 0

// buildHeartbeatProgram assembles the wave: pin high for half the period,
// low for the other half, wrapping forever.
func buildHeartbeatProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Set(rp2pio.SetDestPins, 1).Delay(15).Encode(), // set pins, 1 [15]
		asm.Set(rp2pio.SetDestPins, 0).Delay(15).Encode(), // set pins, 0 [15]
		// .wrap
	}
}

// heartbeatClkDiv computes the state-machine divider that makes one program
// wrap take exactly one tick period.
func heartbeatClkDiv() (uint16, uint8) {
	smHz := uint32(core.TickFrequency * heartbeatCycles)
	sys := machine.CPUFrequency()
	div := sys / smHz
	frac := uint64(sys%smHz) * 256 / uint64(smHz)
	return uint16(div), uint8(frac)
}

// startHeartbeat drives a square wave at the tick frequency on pin, so the
// calibrated rate can be checked against a scope.
func startHeartbeat(pin machine.Pin) error {
	sm := rp2pio.PIO0.StateMachine(0)
	sm.TryClaim()

	program := buildHeartbeatProgram()
	offset, err := rp2pio.PIO0.AddProgram(program, heartbeatOrigin)
	if err != nil {
		return err
	}

	pin.Configure(machine.PinConfig{Mode: rp2pio.PIO0.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(pin, 1)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	div, frac := heartbeatClkDiv()
	cfg.SetClkDivIntFrac(div, frac)

	sm.Init(offset, cfg)
	sm.SetPindirsConsecutive(pin, 1, true)
	sm.SetEnabled(true)
	return nil
}
