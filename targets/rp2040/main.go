//go:build rp2040

// gotick firmware for the RP2040: the tick core driven by the hardware
// microsecond timer, with the console served over USB CDC.
package main

import (
	"machine"
	"strconv"
	"time"

	"gotick/core"
	"gotick/protocol"
	"gotick/sched"
)

// tickIntervalUS is one tick period in hardware-timer microseconds.
const tickIntervalUS = 1000000 / core.TickFrequency

// heartbeatPin carries the calibration-check square wave.
const heartbeatPin = machine.GP2

var (
	rx        *protocol.Ring
	out       *protocol.ScratchBuffer
	transport *protocol.Transport
)

func main() {
	// Clear any watchdog state a previous boot left armed.
	_ = machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})

	initUSB()
	core.SetDebugWriter(writeDebug)

	core.Init(sched.New())
	core.SetFeedbackMode(false)
	core.InitCommands()

	rx = protocol.NewRing(256)
	out = protocol.NewScratch()
	transport = protocol.NewTransport(out, core.DispatchCommand)
	transport.OnReset(func() {
		rx.Reset()
		out.Reset()
	})
	// Hosts wait for the ACK before reading responses; push it out the
	// moment it is queued.
	transport.OnAck(flushUSB)
	core.BindTransport(transport)

	// Ticks must be flowing before calibration starts.
	startTickAlarm()
	began := timerNow()
	core.Calibrate()
	writeDebug("calibrated in " + strconv.FormatUint(timerNow()-began, 10) + "us")

	if err := startHeartbeat(heartbeatPin); err != nil {
		writeDebug("heartbeat: " + err.Error())
	}

	_ = machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 2000})
	_ = machine.Watchdog.Start()

	for {
		machine.Watchdog.Update()
		pumpUSB()
		time.Sleep(100 * time.Microsecond)
	}
}

// pumpUSB moves console bytes in both directions. Runs only in the main
// loop; the tick interrupt never touches the transport.
func pumpUSB() {
	for usbAvailable() > 0 && rx.Free() > 0 {
		b, err := usbReadByte()
		if err != nil {
			break
		}
		rx.Write([]byte{b})
	}
	if !rx.Empty() {
		transport.Receive(rx)
	}
	flushUSB()
}

// flushUSB drains queued output frames to the host.
func flushUSB() {
	if b := out.Bytes(); len(b) > 0 {
		usbWrite(b)
		out.Reset()
	}
}
