package core

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"gotick/protocol"
)

func TestRegistrySequentialIDs(t *testing.T) {
	r := NewRegistry()

	id0 := r.Register("ping_reply", "value=%u", nil)
	id1 := r.Register("ping", "value=%u", func(data *[]byte) error { return nil })
	id2 := r.Register("get_tick", "", func(data *[]byte) error { return nil })

	if id0 != 0 || id1 != 1 || id2 != 2 {
		t.Errorf("IDs not sequential: %d, %d, %d", id0, id1, id2)
	}

	if again := r.Register("ping", "value=%u", nil); again != id1 {
		t.Errorf("re-registering returned ID %d, want %d", again, id1)
	}
	if r.Count() != 3 {
		t.Errorf("registry holds %d entries, want 3", r.Count())
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	id := r.Register("get_uptime", "", func(data *[]byte) error { return nil })

	cmd, ok := r.Lookup(id)
	if !ok || cmd.Name != "get_uptime" {
		t.Fatalf("Lookup(%d) = %v, %v", id, cmd, ok)
	}
	byName, ok := r.LookupName("get_uptime")
	if !ok || byName.ID != id {
		t.Fatalf("LookupName = %v, %v", byName, ok)
	}
	if _, ok := r.Lookup(999); ok {
		t.Error("Lookup of unregistered ID succeeded")
	}
	if _, ok := r.LookupName("nonesuch"); ok {
		t.Error("LookupName of unregistered name succeeded")
	}
}

func TestRegistryDictionaryFormat(t *testing.T) {
	r := NewRegistry()
	r.Register("ping_reply", "value=%u", nil)
	r.Register("ping", "value=%u", func(data *[]byte) error { return nil })
	r.Register("get_tick", "", func(data *[]byte) error { return nil })
	r.AddConstant("TICK_FREQUENCY", "100")

	want := "gotick " + version + "\n" +
		"response 0 ping_reply value=%u\n" +
		"command 1 ping value=%u\n" +
		"command 2 get_tick\n" +
		"const TICK_FREQUENCY 100\n"
	if got := r.Dictionary(); got != want {
		t.Errorf("dictionary:\n%q\nwant:\n%q", got, want)
	}
}

func TestDictionaryChunking(t *testing.T) {
	r := NewRegistry()
	r.Register("ping", "value=%u", func(data *[]byte) error { return nil })
	r.Register("get_calibration", "", func(data *[]byte) error { return nil })
	dict := r.Dictionary()

	var got []byte
	for off := uint32(0); ; {
		chunk := r.DictionaryChunk(off, 16)
		if len(chunk) == 0 {
			break
		}
		if len(chunk) > 16 {
			t.Fatalf("chunk of %d bytes exceeds requested 16", len(chunk))
		}
		got = append(got, chunk...)
		off += uint32(len(chunk))
	}
	if string(got) != dict {
		t.Errorf("reassembled %q, want %q", got, dict)
	}

	if chunk := r.DictionaryChunk(uint32(len(dict)), 16); chunk != nil {
		t.Errorf("past-the-end chunk = %q, want empty", chunk)
	}
	if chunk := r.DictionaryChunk(uint32(len(dict))-3, 200); len(chunk) != 3 {
		t.Errorf("tail chunk has %d bytes, want 3", len(chunk))
	}
}

func TestDispatch(t *testing.T) {
	r := NewRegistry()

	var got uint32
	id := r.Register("set_value", "value=%u", func(data *[]byte) error {
		v, err := protocol.Uvarint(data)
		if err != nil {
			return err
		}
		got = v
		return nil
	})

	out := protocol.NewScratch()
	protocol.PutUvarint(out, 12345)
	data := out.Bytes()
	if err := r.Dispatch(id, &data); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got != 12345 {
		t.Errorf("handler decoded %d, want 12345", got)
	}
}

func TestDispatchUnknownID(t *testing.T) {
	r := NewRegistry()
	var data []byte
	err := r.Dispatch(42, &data)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("Dispatch(42) = %v, want unknown-command error", err)
	}
}

func TestDispatchToResponse(t *testing.T) {
	r := NewRegistry()
	id := r.Register("tick", "high=%u low=%u", nil)

	var data []byte
	err := r.Dispatch(id, &data)
	if err == nil || !strings.Contains(err.Error(), "no handler") {
		t.Errorf("dispatching a response = %v, want no-handler error", err)
	}
}

// initConsole registers the console surface exactly once for the whole test
// binary; at boot InitCommands likewise runs once.
var initConsole sync.Once

func initCommandsForTest() {
	initConsole.Do(InitCommands)
}

func TestConsoleSurface(t *testing.T) {
	initCommandsForTest()
	r := GlobalRegistry()

	ident, ok := r.LookupName("identify_response")
	if !ok || ident.ID != 0 {
		t.Errorf("identify_response ID = %v, %v, want 0", ident, ok)
	}
	identify, ok := r.LookupName("identify")
	if !ok || identify.ID != 1 {
		t.Errorf("identify ID = %v, %v, want 1", identify, ok)
	}
	for _, name := range []string{"get_tick", "get_uptime", "get_calibration", "get_stats", "reset_stats", "tick", "uptime", "calibration", "stats"} {
		if _, ok := r.LookupName(name); !ok {
			t.Errorf("console surface missing %q", name)
		}
	}

	dict := r.Dictionary()
	if !strings.HasPrefix(dict, "gotick "+version+"\n") {
		t.Errorf("dictionary header: %q", dict[:min(len(dict), 20)])
	}
	if !strings.Contains(dict, "const TICK_FREQUENCY 100\n") {
		t.Error("dictionary missing TICK_FREQUENCY constant")
	}
}

// hostFrame wraps payload in a valid host-to-device frame.
func hostFrame(seq byte, payload []byte) []byte {
	frame := []byte{byte(len(payload) + protocol.FrameHeaderSize + protocol.FrameTrailerSize), seq}
	frame = append(frame, payload...)
	crc := protocol.CRC16(frame)
	return append(frame, byte(crc>>8), byte(crc), protocol.SyncByte)
}

// splitResponse validates framing on the first queued frame and returns its
// payload and the remaining bytes.
func splitResponse(t *testing.T, out []byte) (payload, rest []byte) {
	t.Helper()
	if len(out) < protocol.FrameLengthMin {
		t.Fatalf("no complete frame in %d queued bytes", len(out))
	}
	n := int(out[0])
	if n > len(out) || out[n-1] != protocol.SyncByte {
		t.Fatalf("malformed queued frame: % x", out)
	}
	return out[protocol.FrameHeaderSize : n-protocol.FrameTrailerSize], out[n:]
}

func TestGetTickRoundTrip(t *testing.T) {
	initCommandsForTest()
	out := protocol.NewScratch()
	dev := protocol.NewTransport(out, DispatchCommand)
	BindTransport(dev)
	defer BindTransport(nil)

	setTicks(0x100000005)
	cmd, _ := GlobalRegistry().LookupName("get_tick")
	req := protocol.NewScratch()
	protocol.PutUvarint(req, uint32(cmd.ID))

	dev.Receive(protocol.NewSliceInput(hostFrame(protocol.SeqBase, req.Bytes())))

	payload, rest := splitResponse(t, out.Bytes())
	id, err := protocol.Uvarint(&payload)
	if err != nil {
		t.Fatalf("response ID: %v", err)
	}
	tick, _ := GlobalRegistry().LookupName("tick")
	if uint16(id) != tick.ID {
		t.Fatalf("response ID %d, want %d (tick)", id, tick.ID)
	}
	high, _ := protocol.Uvarint(&payload)
	low, err := protocol.Uvarint(&payload)
	if err != nil {
		t.Fatalf("response args: %v", err)
	}
	if high != 1 || low != 5 {
		t.Errorf("tick = %d/%d, want 1/5", high, low)
	}

	if len(rest) != protocol.FrameLengthMin || rest[1] != protocol.SeqBase+1 {
		t.Errorf("missing trailing ack, got % x", rest)
	}
}

func TestIdentifyRoundTrip(t *testing.T) {
	initCommandsForTest()
	out := protocol.NewScratch()
	dev := protocol.NewTransport(out, DispatchCommand)
	BindTransport(dev)
	defer BindTransport(nil)

	cmd, _ := GlobalRegistry().LookupName("identify")
	req := protocol.NewScratch()
	protocol.PutUvarint(req, uint32(cmd.ID))
	protocol.PutUvarint(req, 0)  // offset
	protocol.PutUvarint(req, 40) // count

	dev.Receive(protocol.NewSliceInput(hostFrame(protocol.SeqBase, req.Bytes())))

	payload, _ := splitResponse(t, out.Bytes())
	id, err := protocol.Uvarint(&payload)
	if err != nil || uint16(id) != 0 {
		t.Fatalf("response ID %d (err %v), want 0 (identify_response)", id, err)
	}
	offset, _ := protocol.Uvarint(&payload)
	chunk, err := protocol.Bytes(&payload)
	if err != nil {
		t.Fatalf("response data: %v", err)
	}
	if offset != 0 {
		t.Errorf("echoed offset %d, want 0", offset)
	}
	want := []byte(GlobalRegistry().Dictionary())[:40]
	if !bytes.Equal(chunk, want) {
		t.Errorf("chunk %q, want %q", chunk, want)
	}
}

func TestSendResponseWithoutTransport(t *testing.T) {
	BindTransport(nil)
	SendResponse("tick", nil) // must drop silently
}

func TestSendResponseUnknownPanics(t *testing.T) {
	initCommandsForTest()
	BindTransport(protocol.NewTransport(protocol.NewScratch(), nil))
	defer BindTransport(nil)
	defer func() {
		if recover() == nil {
			t.Fatal("no panic for an unregistered response name")
		}
	}()
	SendResponse("no_such_response", nil)
}
