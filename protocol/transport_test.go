package protocol

import (
	"bytes"
	"testing"
)

// deviceFrame builds a complete frame with the given sequence byte around
// payload. An empty payload yields an ACK frame.
func deviceFrame(seq byte, payload []byte) []byte {
	n := FrameHeaderSize + len(payload) + FrameTrailerSize
	frame := make([]byte, 0, n)
	frame = append(frame, byte(n), seq)
	frame = append(frame, payload...)
	crc := CRC16(frame)
	return append(frame, byte(crc>>8), byte(crc), SyncByte)
}

// messagePayload encodes one message: an ID followed by signed args.
func messagePayload(id uint16, args ...int32) []byte {
	s := NewScratch()
	PutUvarint(s, uint32(id))
	for _, a := range args {
		PutVarint(s, a)
	}
	return append([]byte(nil), s.Bytes()...)
}

func TestTransportDispatchAndAck(t *testing.T) {
	out := NewScratch()
	var gotID uint16
	var gotArg int32
	calls := 0
	tr := NewTransport(out, func(id uint16, data *[]byte) error {
		calls++
		gotID = id
		v, err := Varint(data)
		if err != nil {
			return err
		}
		gotArg = v
		return nil
	})

	tr.Receive(NewSliceInput(deviceFrame(SeqBase, messagePayload(5, 42))))

	if calls != 1 {
		t.Fatalf("dispatcher ran %d times, want 1", calls)
	}
	if gotID != 5 || gotArg != 42 {
		t.Errorf("dispatched id=%d arg=%d, want id=5 arg=42", gotID, gotArg)
	}

	wantAck := deviceFrame(SeqBase+1, nil)
	if !bytes.Equal(out.Bytes(), wantAck) {
		t.Errorf("ack = %v, want %v", out.Bytes(), wantAck)
	}
}

func TestTransportMultipleMessagesPerFrame(t *testing.T) {
	out := NewScratch()
	var ids []uint16
	tr := NewTransport(out, func(id uint16, data *[]byte) error {
		ids = append(ids, id)
		return nil
	})

	payload := append(messagePayload(3), messagePayload(4)...)
	tr.Receive(NewSliceInput(deviceFrame(SeqBase, payload)))

	if len(ids) != 2 || ids[0] != 3 || ids[1] != 4 {
		t.Errorf("dispatched %v, want [3 4]", ids)
	}
}

func TestTransportSequenceGapNak(t *testing.T) {
	out := NewScratch()
	calls := 0
	tr := NewTransport(out, func(id uint16, data *[]byte) error {
		calls++
		return nil
	})

	// The link expects SeqBase; a frame two ahead must not dispatch.
	tr.Receive(NewSliceInput(deviceFrame(SeqBase+2, messagePayload(9))))

	if calls != 0 {
		t.Errorf("out-of-order frame dispatched %d times", calls)
	}

	// The NAK carries the unchanged expectation.
	wantNak := deviceFrame(SeqBase, nil)
	if !bytes.Equal(out.Bytes(), wantNak) {
		t.Errorf("nak = %v, want %v", out.Bytes(), wantNak)
	}
}

func TestTransportDuplicateFrameIgnored(t *testing.T) {
	out := NewScratch()
	var ids []uint16
	tr := NewTransport(out, func(id uint16, data *[]byte) error {
		ids = append(ids, id)
		return nil
	})

	stream := append(deviceFrame(SeqBase, messagePayload(1)), deviceFrame(SeqBase+1, messagePayload(2))...)
	tr.Receive(NewSliceInput(stream))

	out.Reset()
	tr.Receive(NewSliceInput(deviceFrame(SeqBase+1, messagePayload(2)))) // retransmit

	if len(ids) != 2 {
		t.Errorf("retransmit was dispatched again: ids = %v", ids)
	}
	wantAck := deviceFrame(SeqBase+2, nil)
	if !bytes.Equal(out.Bytes(), wantAck) {
		t.Errorf("ack = %v, want %v", out.Bytes(), wantAck)
	}
}

func TestTransportCorruptFrameResync(t *testing.T) {
	out := NewScratch()
	var ids []uint16
	tr := NewTransport(out, func(id uint16, data *[]byte) error {
		ids = append(ids, id)
		return nil
	})

	bad := deviceFrame(SeqBase, messagePayload(7))
	bad[len(bad)-2] ^= 0x01 // corrupt the low CRC byte

	// The retransmit reuses the sequence the bad frame failed to deliver.
	good := deviceFrame(SeqBase, messagePayload(7))
	tr.Receive(NewSliceInput(append(bad, good...)))

	if len(ids) != 1 || ids[0] != 7 {
		t.Errorf("dispatched %v, want [7]", ids)
	}

	// One ACK when the trailing sync byte restores sync, one for the good
	// frame.
	wantOut := append(deviceFrame(SeqBase, nil), deviceFrame(SeqBase+1, nil)...)
	if !bytes.Equal(out.Bytes(), wantOut) {
		t.Errorf("output = %v, want %v", out.Bytes(), wantOut)
	}
}

func TestTransportHostRestartResets(t *testing.T) {
	out := NewScratch()
	resets := 0
	var ids []uint16
	tr := NewTransport(out, func(id uint16, data *[]byte) error {
		ids = append(ids, id)
		return nil
	})
	tr.OnReset(func() { resets++ })

	tr.Receive(NewSliceInput(deviceFrame(SeqBase, messagePayload(1))))

	// A fresh host process starts over at the base sequence.
	out.Reset()
	tr.Receive(NewSliceInput(deviceFrame(SeqBase, messagePayload(2))))

	if resets != 1 {
		t.Errorf("reset callback ran %d times, want 1", resets)
	}
	if len(ids) != 2 || ids[1] != 2 {
		t.Errorf("dispatched %v, want [1 2]", ids)
	}
	wantAck := deviceFrame(SeqBase+1, nil)
	if !bytes.Equal(out.Bytes(), wantAck) {
		t.Errorf("ack = %v, want %v", out.Bytes(), wantAck)
	}
}

func TestTransportPartialFrameAcrossReads(t *testing.T) {
	out := NewScratch()
	calls := 0
	tr := NewTransport(out, func(id uint16, data *[]byte) error {
		calls++
		if _, err := Varint(data); err != nil {
			return err
		}
		return nil
	})

	q := NewRing(64)
	frame := deviceFrame(SeqBase, messagePayload(6, 1000))

	q.Write(frame[:3])
	tr.Receive(q)
	if calls != 0 {
		t.Fatal("dispatched on a partial frame")
	}
	if q.Len() != 3 {
		t.Errorf("partial frame consumed: %d bytes left, want 3", q.Len())
	}

	q.Write(frame[3:])
	tr.Receive(q)
	if calls != 1 {
		t.Errorf("dispatcher ran %d times, want 1", calls)
	}
	if !q.Empty() {
		t.Errorf("%d bytes left unconsumed", q.Len())
	}
}

func TestTransportHandlerPanicContained(t *testing.T) {
	out := NewScratch()
	first := true
	var ids []uint16
	tr := NewTransport(out, func(id uint16, data *[]byte) error {
		if first {
			first = false
			panic("handler fault")
		}
		ids = append(ids, id)
		return nil
	})

	// The panic is contained; the link desynchronizes instead of crashing.
	tr.Receive(NewSliceInput(deviceFrame(SeqBase, messagePayload(9))))

	// The next frame is eaten by the sync hunt, which is the price of
	// desync; its retransmit goes through.
	tr.Receive(NewSliceInput(deviceFrame(SeqBase+1, messagePayload(9))))
	tr.Receive(NewSliceInput(deviceFrame(SeqBase+1, messagePayload(9))))

	if len(ids) != 1 || ids[0] != 9 {
		t.Errorf("dispatched %v after recovery, want [9]", ids)
	}
}

func TestTransportSendMessageFrame(t *testing.T) {
	out := NewScratch()
	tr := NewTransport(out, nil)

	tr.SendMessage(3, func(o OutputBuffer) {
		PutUvarint(o, 77)
	})

	frame := out.Bytes()
	if len(frame) != int(frame[0]) {
		t.Fatalf("frame length byte %d, frame is %d bytes", frame[0], len(frame))
	}
	if frame[1] != SeqBase {
		t.Errorf("sequence byte 0x%02x, want 0x%02x", frame[1], SeqBase)
	}
	if frame[len(frame)-1] != SyncByte {
		t.Errorf("missing trailing sync byte: %v", frame)
	}

	crc := CRC16(frame[:len(frame)-FrameTrailerSize])
	if frame[len(frame)-3] != byte(crc>>8) || frame[len(frame)-2] != byte(crc) {
		t.Errorf("bad CRC on sent frame: %v", frame)
	}

	payload := frame[FrameHeaderSize : len(frame)-FrameTrailerSize]
	id, err := Uvarint(&payload)
	if err != nil || id != 3 {
		t.Fatalf("payload id = %d (%v), want 3", id, err)
	}
	arg, err := Uvarint(&payload)
	if err != nil || arg != 77 {
		t.Errorf("payload arg = %d (%v), want 77", arg, err)
	}
	if len(payload) != 0 {
		t.Errorf("%d trailing payload bytes", len(payload))
	}
}
