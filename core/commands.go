package core

import "gotick/protocol"

const version = "0.1.0"

// InitCommands registers the console surface. Call once at boot before the
// transport starts handing frames to the registry.
//
// Registration order fixes the wire IDs; identify_response and identify must
// come first so a host can bootstrap the dictionary knowing only those two.
func InitCommands() {
	// Wire IDs 0 and 1.
	RegisterResponse("identify_response", "offset=%u data=%*s")
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify)

	RegisterCommand("get_tick", "", handleGetTick)
	RegisterCommand("get_uptime", "", handleGetUptime)
	RegisterCommand("get_calibration", "", handleGetCalibration)
	RegisterCommand("get_stats", "", handleGetStats)
	RegisterCommand("reset_stats", "", handleResetStats)

	RegisterResponse("tick", "high=%u low=%u")
	RegisterResponse("uptime", "seconds=%u")
	RegisterResponse("calibration", "loops_per_tick=%u tick_frequency=%u")
	RegisterResponse("stats", "ticks_high=%u ticks_low=%u priority=%u global=%u")

	RegisterConstant("TICK_FREQUENCY", utoa(TickFrequency))
}

// handleIdentify serves a chunk of the dictionary.
func handleIdentify(data *[]byte) error {
	offset, err := protocol.Uvarint(data)
	if err != nil {
		return err
	}
	count, err := protocol.Uvarint(data)
	if err != nil {
		return err
	}

	chunk := globalRegistry.DictionaryChunk(offset, uint8(count))

	SendResponse("identify_response", func(out protocol.OutputBuffer) {
		protocol.PutUvarint(out, offset)
		protocol.PutBytes(out, chunk)
	})
	return nil
}

// handleGetTick reports the current tick count, split into 32-bit halves.
func handleGetTick(data *[]byte) error {
	t := uint64(Now())

	SendResponse("tick", func(out protocol.OutputBuffer) {
		protocol.PutUvarint(out, uint32(t>>32))
		protocol.PutUvarint(out, uint32(t))
	})
	return nil
}

// handleGetUptime reports whole seconds since boot, derived from the clock.
func handleGetUptime(data *[]byte) error {
	seconds := Now() / TickFrequency

	SendResponse("uptime", func(out protocol.OutputBuffer) {
		protocol.PutUvarint(out, uint32(seconds))
	})
	return nil
}

// handleGetCalibration reports the busy-wait calibration factor.
func handleGetCalibration(data *[]byte) error {
	SendResponse("calibration", func(out protocol.OutputBuffer) {
		protocol.PutUvarint(out, LoopsPerTick())
		protocol.PutUvarint(out, TickFrequency)
	})
	return nil
}

// handleGetStats reports the tick-handler counters.
func handleGetStats(data *[]byte) error {
	sendStats()
	return nil
}

// handleResetStats zeroes the handler counters and reports the fresh state.
func handleResetStats(data *[]byte) error {
	ResetStats()
	sendStats()
	return nil
}

func sendStats() {
	s := HandlerStats()
	ticks := uint64(s.Ticks)

	SendResponse("stats", func(out protocol.OutputBuffer) {
		protocol.PutUvarint(out, uint32(ticks>>32))
		protocol.PutUvarint(out, uint32(ticks))
		protocol.PutUvarint(out, uint32(s.PriorityRecomputes))
		protocol.PutUvarint(out, uint32(s.GlobalRecomputes))
	})
}

// responder is the transport responses go out on, bound by platform code.
var responder *protocol.Transport

// BindTransport points responses at the platform transport.
func BindTransport(t *protocol.Transport) {
	responder = t
}

// SendResponse encodes and queues a response frame. Responses must be
// registered up front; an unknown name is a programming error.
func SendResponse(name string, args func(out protocol.OutputBuffer)) {
	if responder == nil {
		return
	}
	cmd, ok := globalRegistry.LookupName(name)
	if !ok {
		panic("core: response not registered: " + name)
	}
	responder.SendMessage(cmd.ID, args)
}
