package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by calls made after Close, or interrupted by it.
var ErrClosed = errors.New("protocol: link closed")

// DefaultAckTimeout bounds how long Send waits for the device to
// acknowledge a frame.
const DefaultAckTimeout = 2 * time.Second

// Frame is one decoded frame from the device.
type Frame struct {
	Sequence uint8
	Payload  []byte // message stream between header and trailer
}

// ResponseFunc receives decoded responses on the read loop. The data slice
// is positioned just past the message ID.
type ResponseFunc func(id uint16, data *[]byte) error

// HostLink is the host side of the console link. It writes command frames,
// pairs them with their acknowledgments, and hands response frames to the
// caller. A background goroutine owns all reads from the port.
type HostLink struct {
	port io.ReadWriteCloser

	seq    atomic.Uint32 // sequence byte for the next outgoing frame
	synced atomic.Bool

	in *Ring

	acks      chan Frame
	responses chan Frame

	onResponse ResponseFunc

	wmu sync.Mutex

	stop chan struct{}
	done chan struct{}
}

// NewHostLink starts a link over port, including its read loop.
func NewHostLink(port io.ReadWriteCloser) *HostLink {
	l := &HostLink{
		port:      port,
		in:        NewRing(1024),
		acks:      make(chan Frame, 1),
		responses: make(chan Frame, 16),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	l.seq.Store(SeqBase)
	l.synced.Store(true)
	go l.readLoop()
	return l
}

// Send transmits one command frame and waits for its acknowledgment.
func (l *HostLink) Send(id uint16, args func(OutputBuffer)) error {
	return l.SendTimeout(id, args, DefaultAckTimeout)
}

// SendTimeout is Send with an explicit acknowledgment deadline.
func (l *HostLink) SendTimeout(id uint16, args func(OutputBuffer), timeout time.Duration) error {
	select {
	case <-l.stop:
		return ErrClosed
	default:
	}

	frame, err := l.encode(id, args)
	if err != nil {
		return err
	}

	l.wmu.Lock()
	_, err = l.port.Write(frame)
	l.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return l.awaitAck(timeout)
}

// encode builds a complete frame for id and args under the current
// sequence number.
func (l *HostLink) encode(id uint16, args func(OutputBuffer)) ([]byte, error) {
	scratch := NewScratch()
	scratch.Append([]byte{0, uint8(l.seq.Load())})
	PutUvarint(scratch, uint32(id))
	if args != nil {
		args(scratch)
	}

	n := scratch.Pos() + FrameTrailerSize
	if n > FrameLengthMax {
		return nil, fmt.Errorf("frame too long: %d bytes (limit %d)", n, FrameLengthMax)
	}
	scratch.SetByte(framePosLen, byte(n))

	crc := CRC16(scratch.Bytes())
	scratch.Append([]byte{uint8(crc >> 8), uint8(crc), SyncByte})

	frame := make([]byte, n)
	copy(frame, scratch.Bytes())
	return frame, nil
}

// awaitAck blocks until the device acknowledges the frame just sent. A
// successful acknowledgment carries the sequence after the one we sent;
// our own sequence echoed back unchanged is a NAK.
func (l *HostLink) awaitAck(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack := <-l.acks:
		sent := uint8(l.seq.Load())
		next := (sent+1)&SeqMask | SeqBase
		if ack.Sequence != next {
			return fmt.Errorf("frame refused: device expects 0x%02x, sent 0x%02x", ack.Sequence, sent)
		}
		l.seq.Store(uint32(next))
		return nil
	case <-timer.C:
		return fmt.Errorf("no ack within %v", timeout)
	case <-l.stop:
		return ErrClosed
	}
}

// Response returns the next response frame, waiting up to timeout.
func (l *HostLink) Response(timeout time.Duration) (Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-l.responses:
		return f, nil
	case <-timer.C:
		return Frame{}, fmt.Errorf("no response within %v", timeout)
	case <-l.stop:
		return Frame{}, ErrClosed
	}
}

// OnResponse registers a callback run on the read loop for every response
// frame. Set it before traffic starts.
func (l *HostLink) OnResponse(fn ResponseFunc) { l.onResponse = fn }

// readLoop owns the port's read side, feeding bytes to the frame scanner.
func (l *HostLink) readLoop() {
	defer close(l.done)
	buf := make([]byte, 256)

	for {
		select {
		case <-l.stop:
			return
		default:
		}

		n, err := l.port.Read(buf)
		if err != nil {
			if err == io.EOF {
				return
			}
			// Transient port errors: back off briefly and retry.
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n > 0 {
			l.in.Write(buf[:n])
			l.scan()
		}
	}
}

// scan parses complete frames out of the input ring.
func (l *HostLink) scan() {
	data := l.in.Peek()
	rest := data

	for len(rest) > 0 {
		if !l.synced.Load() {
			i := bytes.IndexByte(rest, SyncByte)
			if i < 0 {
				rest = nil
				break
			}
			rest = rest[i+1:]
			l.synced.Store(true)
			continue
		}

		if rest[0] == SyncByte {
			rest = rest[1:]
			continue
		}
		if len(rest) < FrameLengthMin {
			break
		}

		n := int(rest[framePosLen])
		if n < FrameLengthMin || n > FrameLengthMax {
			l.synced.Store(false)
			continue
		}
		seq := rest[framePosSeq]
		if seq&^byte(SeqMask) != SeqBase {
			l.synced.Store(false)
			continue
		}
		if len(rest) < n {
			break
		}
		if rest[n-frameTrailerSync] != SyncByte {
			l.synced.Store(false)
			continue
		}
		crc := uint16(rest[n-frameTrailerCRC])<<8 | uint16(rest[n-frameTrailerCRC+1])
		if CRC16(rest[:n-FrameTrailerSize]) != crc {
			l.synced.Store(false)
			continue
		}

		// Copy the payload out: the ring reuses its backing array.
		payload := make([]byte, n-FrameHeaderSize-FrameTrailerSize)
		copy(payload, rest[FrameHeaderSize:n-FrameTrailerSize])
		l.deliver(Frame{Sequence: seq, Payload: payload})
		rest = rest[n:]
	}

	if used := len(data) - len(rest); used > 0 {
		l.in.Discard(used)
	}
}

// deliver routes one frame: empty payloads are acknowledgments, everything
// else is a response.
func (l *HostLink) deliver(f Frame) {
	if len(f.Payload) == 0 {
		select {
		case l.acks <- f:
		default: // unsolicited ack with no sender waiting
		}
		return
	}

	if l.onResponse != nil {
		data := append([]byte(nil), f.Payload...)
		if id, err := Uvarint(&data); err == nil {
			_ = l.onResponse(uint16(id), &data)
		}
	}

	select {
	case l.responses <- f:
	default:
		// Queue full: drop the oldest so the newest is never lost.
		select {
		case <-l.responses:
		default:
		}
		l.responses <- f
	}
}

// Reset returns the link to its boot state after an error or a device
// restart. Call it while no Send is in flight.
func (l *HostLink) Reset() {
	l.synced.Store(true)
	l.seq.Store(SeqBase)

	for len(l.acks) > 0 {
		<-l.acks
	}
	for len(l.responses) > 0 {
		<-l.responses
	}
}

// Close stops the read loop and closes the port. The port is closed before
// waiting so a read blocked on a quiet link gets unstuck.
func (l *HostLink) Close() error {
	close(l.stop)
	err := l.port.Close()
	<-l.done
	return err
}
