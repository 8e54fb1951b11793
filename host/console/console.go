// Package console implements the host side of the tick device's diagnostic
// link: connecting over serial, fetching the command dictionary, and
// issuing the device's queries.
package console

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gotick/host/serial"
	"gotick/protocol"
)

// identifyChunk is how many dictionary bytes each identify request asks
// for. Small enough that request and response both fit a single frame.
const identifyChunk = 40

// responseTimeout bounds how long a query waits for its reply.
const responseTimeout = time.Second

// Wire IDs fixed by the device's registration order. Everything else is
// resolved through the dictionary these two commands serve.
const (
	idIdentifyResponse = 0
	idIdentify         = 1
)

// Dictionary is the parsed device dictionary: the name-to-ID maps needed
// to issue commands and decode responses, plus the device's exported
// constants.
type Dictionary struct {
	Version   string
	Commands  map[string]uint16
	Responses map[string]uint16
	Constants map[string]string
}

// Calibration is the device's busy-wait calibration report.
type Calibration struct {
	LoopsPerTick  uint32
	TickFrequency uint32
}

// Stats mirrors the device's tick-handler counters.
type Stats struct {
	Ticks              int64
	PriorityRecomputes uint32
	GlobalRecomputes   uint32
}

// Console is a connected tick device.
type Console struct {
	port serial.Port
	link *protocol.HostLink
	dict *Dictionary
}

// Connect opens the device node and fetches the dictionary.
func Connect(device string) (*Console, error) {
	return ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig is Connect with an explicit serial configuration.
func ConnectWithConfig(cfg *serial.Config) (*Console, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}

	// A device that only just enumerated may still be settling.
	time.Sleep(100 * time.Millisecond)

	return Attach(port)
}

// Attach runs the console over an already-open port and fetches the
// dictionary. On error the port is closed.
func Attach(port serial.Port) (*Console, error) {
	c := &Console{port: port, link: protocol.NewHostLink(port)}
	if err := c.fetchDictionary(); err != nil {
		c.link.Close()
		return nil, fmt.Errorf("console: identify: %w", err)
	}
	return c, nil
}

// Close shuts down the link and the port underneath it.
func (c *Console) Close() error {
	return c.link.Close()
}

// Dictionary returns the device dictionary fetched at connect.
func (c *Console) Dictionary() *Dictionary { return c.dict }

// fetchDictionary pulls the dictionary text in chunks and parses it.
func (c *Console) fetchDictionary() error {
	var text []byte
	for offset := uint32(0); ; {
		chunk, err := c.identify(offset, identifyChunk)
		if err != nil {
			return fmt.Errorf("chunk at %d: %w", offset, err)
		}
		if len(chunk) == 0 {
			break
		}
		text = append(text, chunk...)
		offset += uint32(len(chunk))
	}

	dict, err := parseDictionary(string(text))
	if err != nil {
		return err
	}
	c.dict = dict
	return nil
}

// identify requests one dictionary chunk. An empty chunk means the offset
// is past the end.
func (c *Console) identify(offset uint32, count uint8) ([]byte, error) {
	err := c.link.Send(idIdentify, func(out protocol.OutputBuffer) {
		protocol.PutUvarint(out, offset)
		protocol.PutUvarint(out, uint32(count))
	})
	if err != nil {
		return nil, err
	}

	data, err := c.awaitResponse(idIdentifyResponse)
	if err != nil {
		return nil, err
	}

	respOffset, err := protocol.Uvarint(&data)
	if err != nil {
		return nil, fmt.Errorf("decode offset: %w", err)
	}
	if respOffset != offset {
		return nil, fmt.Errorf("offset %d echoed for request at %d", respOffset, offset)
	}
	chunk, err := protocol.Bytes(&data)
	if err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return chunk, nil
}

// awaitResponse waits for the response with the given ID, skipping any
// stale frames left over from an earlier timed-out query.
func (c *Console) awaitResponse(id uint16) ([]byte, error) {
	deadline := time.Now().Add(responseTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("no response %d within %v", id, responseTimeout)
		}

		frame, err := c.link.Response(remaining)
		if err != nil {
			return nil, err
		}
		data := frame.Payload
		got, err := protocol.Uvarint(&data)
		if err != nil {
			continue // undecodable stray frame
		}
		if uint16(got) == id {
			return data, nil
		}
	}
}

// query sends the named command and returns the named response's argument
// bytes.
func (c *Console) query(command, response string) ([]byte, error) {
	cmdID, ok := c.dict.Commands[command]
	if !ok {
		return nil, fmt.Errorf("console: device has no %q command", command)
	}
	respID, ok := c.dict.Responses[response]
	if !ok {
		return nil, fmt.Errorf("console: device has no %q response", response)
	}

	if err := c.link.Send(cmdID, nil); err != nil {
		return nil, err
	}
	return c.awaitResponse(respID)
}

// QueryTick returns the device's current tick count.
func (c *Console) QueryTick() (int64, error) {
	data, err := c.query("get_tick", "tick")
	if err != nil {
		return 0, err
	}
	high, err := protocol.Uvarint(&data)
	if err != nil {
		return 0, err
	}
	low, err := protocol.Uvarint(&data)
	if err != nil {
		return 0, err
	}
	return int64(high)<<32 | int64(low), nil
}

// QueryUptime returns whole seconds since the device booted.
func (c *Console) QueryUptime() (uint32, error) {
	data, err := c.query("get_uptime", "uptime")
	if err != nil {
		return 0, err
	}
	return protocol.Uvarint(&data)
}

// QueryCalibration returns the device's calibration report.
func (c *Console) QueryCalibration() (Calibration, error) {
	data, err := c.query("get_calibration", "calibration")
	if err != nil {
		return Calibration{}, err
	}
	var cal Calibration
	if cal.LoopsPerTick, err = protocol.Uvarint(&data); err != nil {
		return Calibration{}, err
	}
	if cal.TickFrequency, err = protocol.Uvarint(&data); err != nil {
		return Calibration{}, err
	}
	return cal, nil
}

// QueryStats returns the device's handler counters.
func (c *Console) QueryStats() (Stats, error) {
	data, err := c.query("get_stats", "stats")
	if err != nil {
		return Stats{}, err
	}
	return decodeStats(data)
}

// ResetStats zeroes the device's handler counters and returns the snapshot
// the device reports back.
func (c *Console) ResetStats() (Stats, error) {
	data, err := c.query("reset_stats", "stats")
	if err != nil {
		return Stats{}, err
	}
	return decodeStats(data)
}

func decodeStats(data []byte) (Stats, error) {
	var s Stats
	high, err := protocol.Uvarint(&data)
	if err != nil {
		return Stats{}, err
	}
	low, err := protocol.Uvarint(&data)
	if err != nil {
		return Stats{}, err
	}
	s.Ticks = int64(high)<<32 | int64(low)
	if s.PriorityRecomputes, err = protocol.Uvarint(&data); err != nil {
		return Stats{}, err
	}
	if s.GlobalRecomputes, err = protocol.Uvarint(&data); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// Send issues a named command with caller-encoded arguments. The generic
// escape hatch for commands the typed queries do not cover.
func (c *Console) Send(name string, args func(protocol.OutputBuffer)) error {
	id, ok := c.dict.Commands[name]
	if !ok {
		return fmt.Errorf("console: device has no %q command", name)
	}
	return c.link.Send(id, args)
}

// parseDictionary parses the line-oriented dictionary text:
//
//	gotick <version>
//	command <id> <name> [format]
//	response <id> <name> [format]
//	const <name> <value>
func parseDictionary(text string) (*Dictionary, error) {
	dict := &Dictionary{
		Commands:  make(map[string]uint16),
		Responses: make(map[string]uint16),
		Constants: make(map[string]string),
	}

	for i, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "gotick":
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: malformed header %q", i+1, line)
			}
			dict.Version = fields[1]

		case "command", "response":
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: malformed entry %q", i+1, line)
			}
			id, err := strconv.ParseUint(fields[1], 10, 16)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad ID in %q: %w", i+1, line, err)
			}
			if fields[0] == "command" {
				dict.Commands[fields[2]] = uint16(id)
			} else {
				dict.Responses[fields[2]] = uint16(id)
			}

		case "const":
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: malformed constant %q", i+1, line)
			}
			dict.Constants[fields[1]] = strings.Join(fields[2:], " ")

		default:
			return nil, fmt.Errorf("line %d: unknown entry kind %q", i+1, fields[0])
		}
	}

	if dict.Version == "" {
		return nil, fmt.Errorf("dictionary has no version header")
	}
	return dict, nil
}
