//go:build rp2040

package main

import "machine"

// initUSB brings up the CDC-ACM console. machine.Serial is the USB serial
// on this target; the UART parameters are ignored.
func initUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

func usbAvailable() int { return machine.Serial.Buffered() }

func usbReadByte() (byte, error) { return machine.Serial.ReadByte() }

// usbWrite pushes the whole buffer out, retrying short writes.
func usbWrite(data []byte) {
	for len(data) > 0 {
		n, err := machine.Serial.Write(data)
		if err != nil {
			return
		}
		data = data[n:]
	}
}

// writeDebug sends a diagnostic line as plain text on the console stream.
// Hosts drop it while hunting for the next frame boundary.
func writeDebug(s string) {
	usbWrite([]byte(s))
	usbWrite([]byte("\r\n"))
}
