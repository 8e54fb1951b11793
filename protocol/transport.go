package protocol

import (
	"bytes"
	"sync/atomic"
)

// Dispatcher decodes and executes one message from a received frame. The
// implementation consumes its arguments from *data, leaving the slice
// positioned at the next message.
type Dispatcher func(id uint16, data *[]byte) error

// Transport is the device side of the console link. It scans the incoming
// byte stream for frames, enforces sequence numbering, and encodes
// outgoing responses.
//
// On a polled target everything runs from the main loop. Hosted builds may
// call Receive and SendMessage from different goroutines, which is why the
// sync and sequence words are atomic.
type Transport struct {
	synced  atomic.Bool
	nextSeq atomic.Uint32 // next expected sequence byte, SeqBase|0..15

	out      OutputBuffer
	dispatch Dispatcher

	onReset func()
	onAck   func()
}

// NewTransport returns a Transport that parses with dispatch and writes
// frames to out. The link starts synchronized, expecting the first host
// sequence value.
func NewTransport(out OutputBuffer, dispatch Dispatcher) *Transport {
	t := &Transport{out: out, dispatch: dispatch}
	t.synced.Store(true)
	t.nextSeq.Store(SeqBase)
	return t
}

// Receive consumes buffered input, dispatching every complete valid frame
// and acknowledging each one. Bad framing drops the link out of sync; the
// scanner then hunts for the next sync byte before parsing resumes.
func (t *Transport) Receive(in InputBuffer) {
	data := in.Peek()
	rest := data

	for len(rest) > 0 {
		if !t.synced.Load() {
			i := bytes.IndexByte(rest, SyncByte)
			if i < 0 {
				rest = nil
				break
			}
			rest = rest[i+1:]
			t.synced.Store(true)
			t.sendAck()
			continue
		}

		if rest[0] == SyncByte {
			rest = rest[1:]
			continue
		}
		if len(rest) < FrameLengthMin {
			break // partial header, wait for more bytes
		}

		n := int(rest[framePosLen])
		if n < FrameLengthMin || n > FrameLengthMax {
			t.synced.Store(false)
			continue
		}
		seq := rest[framePosSeq]
		if seq&^byte(SeqMask) != SeqBase {
			t.synced.Store(false)
			continue
		}
		if len(rest) < n {
			break // frame still arriving
		}
		if rest[n-frameTrailerSync] != SyncByte {
			t.synced.Store(false)
			continue
		}
		crc := uint16(rest[n-frameTrailerCRC])<<8 | uint16(rest[n-frameTrailerCRC+1])
		if CRC16(rest[:n-FrameTrailerSize]) != crc {
			t.synced.Store(false)
			continue
		}

		t.accept(seq, rest[FrameHeaderSize:n-FrameTrailerSize])
		rest = rest[n:]
		t.sendAck()
	}

	if used := len(data) - len(rest); used > 0 {
		in.Discard(used)
	}
}

// accept applies the sequence rules to a structurally valid frame.
func (t *Transport) accept(seq uint8, payload []byte) {
	want := uint8(t.nextSeq.Load())

	// A sequence byte back at the base value from a host that had advanced
	// past it means the host restarted; follow it down.
	if seq == SeqBase && want != SeqBase {
		t.nextSeq.Store(SeqBase)
		want = SeqBase
		if t.onReset != nil {
			t.onReset()
		}
	}

	if seq != want {
		// Duplicate or gap. The ACK the caller sends carries the sequence
		// we expect, which is all the host needs to recover.
		return
	}

	t.nextSeq.Store(uint32((seq+1)&SeqMask | SeqBase))
	t.runPayload(payload)
}

// runPayload dispatches each message in a frame payload.
func (t *Transport) runPayload(payload []byte) {
	defer func() {
		// A panicking handler must not take the link down with it.
		if recover() != nil {
			t.synced.Store(false)
		}
	}()

	for len(payload) > 0 {
		id, err := Uvarint(&payload)
		if err != nil {
			t.synced.Store(false)
			return
		}
		if t.dispatch == nil {
			return
		}
		if err := t.dispatch(uint16(id), &payload); err != nil {
			// The handler rejected the message. The frame itself was
			// intact, so stay synchronized and drop the rest of it.
			return
		}
	}
}

// sendAck emits the empty frame acknowledging everything up to the
// expected sequence. It doubles as a NAK: a host that sees its own
// sequence echoed back unchanged knows its frame did not land.
func (t *Transport) sendAck() {
	seq := uint8(t.nextSeq.Load())
	crc := CRC16([]byte{FrameLengthMin, seq})
	t.out.Append([]byte{FrameLengthMin, seq, uint8(crc >> 8), uint8(crc), SyncByte})
	if t.onAck != nil {
		t.onAck()
	}
}

// SendMessage encodes one message and queues it for transmission. Outgoing
// frames reuse the current expected sequence; only host frames advance it.
func (t *Transport) SendMessage(id uint16, args func(OutputBuffer)) {
	t.sendFrame(func(out OutputBuffer) {
		PutUvarint(out, uint32(id))
		if args != nil {
			args(out)
		}
	})
}

func (t *Transport) sendFrame(body func(OutputBuffer)) {
	mark := t.out.Pos()
	t.out.Append([]byte{0, uint8(t.nextSeq.Load())})
	body(t.out)

	n := len(t.out.Since(mark)) + FrameTrailerSize
	t.out.SetByte(mark+framePosLen, byte(n))

	crc := CRC16(t.out.Since(mark))
	t.out.Append([]byte{uint8(crc >> 8), uint8(crc), SyncByte})
}

// Reset restores the link to its boot state. Platform code calls this when
// the underlying connection drops.
func (t *Transport) Reset() {
	t.synced.Store(true)
	t.nextSeq.Store(SeqBase)
	if t.onReset != nil {
		t.onReset()
	}
}

// OnReset registers a callback for host restarts, detected or explicit.
func (t *Transport) OnReset(fn func()) { t.onReset = fn }

// OnAck registers a callback invoked right after an ACK is queued. Targets
// use it to push the ACK out ahead of any buffered responses, which hosts
// waiting synchronously depend on.
func (t *Transport) OnAck(fn func()) { t.onAck = fn }
