// Package serial is the host's serial link to the tick device.
package serial

import "io"

// Port is an open serial connection. The interface exists so the console
// can run over a native port, an in-process pipe in tests, or anything
// else that moves bytes.
type Port interface {
	io.ReadWriteCloser

	// Flush forces out any buffered writes.
	Flush() error
}

// Config selects and configures a device node.
type Config struct {
	// Device is the node path, e.g. /dev/ttyACM0.
	Device string

	// Baud is the line rate. USB CDC devices ignore it; UART bridges need
	// it to match the device side.
	Baud int

	// ReadTimeout in milliseconds. Zero blocks indefinitely; the console's
	// read loop prefers short timeouts so shutdown stays prompt.
	ReadTimeout int
}

// DefaultConfig returns the configuration the console uses unless told
// otherwise.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}
