package serial

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// nativePort adapts github.com/tarm/serial to Port.
type nativePort struct {
	port *serial.Port
}

// Open opens the configured device node.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("serial: nil config")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}
	return &nativePort{port: port}, nil
}

func (p *nativePort) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *nativePort) Write(b []byte) (int, error) { return p.port.Write(b) }

func (p *nativePort) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}

// Flush is a no-op: the underlying driver writes through on Write.
func (p *nativePort) Flush() error { return nil }
