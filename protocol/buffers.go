package protocol

// InputBuffer is the receive side of the link: a window of buffered bytes
// that the frame scanner consumes from the front.
type InputBuffer interface {
	// Peek returns the buffered bytes without consuming them.
	Peek() []byte

	// Len returns the number of buffered bytes.
	Len() int

	// Discard drops the first n buffered bytes.
	Discard(n int)
}

// OutputBuffer is the transmit side: an append-only byte sink that also
// allows patching earlier positions, which frame encoding needs for the
// length byte.
type OutputBuffer interface {
	Append(p []byte)
	AppendByte(b byte)

	// Pos returns the current append position.
	Pos() int

	// SetByte overwrites the byte at an earlier position.
	SetByte(pos int, b byte)

	// Since returns everything appended at or after pos.
	Since(pos int) []byte
}

// SliceInput adapts a byte slice to InputBuffer, for transports that hand
// over one read's worth of data at a time and for tests.
type SliceInput struct {
	data []byte
}

// NewSliceInput wraps data in a SliceInput.
func NewSliceInput(data []byte) *SliceInput {
	return &SliceInput{data: data}
}

func (s *SliceInput) Peek() []byte { return s.data }

func (s *SliceInput) Len() int { return len(s.data) }

func (s *SliceInput) Discard(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// scratchCapacity leaves room to stage several frames between flushes; a
// burst of responses to a single poll must fit.
const scratchCapacity = 512

// ScratchBuffer is a fixed-capacity OutputBuffer. It never allocates after
// creation, so frame encoding stays safe on targets without a generous
// heap. Appends past capacity are dropped; the frame length limit keeps
// well clear of that.
type ScratchBuffer struct {
	buf [scratchCapacity]byte
	n   int
}

// NewScratch returns an empty ScratchBuffer.
func NewScratch() *ScratchBuffer {
	return &ScratchBuffer{}
}

func (s *ScratchBuffer) Append(p []byte) {
	s.n += copy(s.buf[s.n:], p)
}

func (s *ScratchBuffer) AppendByte(b byte) {
	if s.n < len(s.buf) {
		s.buf[s.n] = b
		s.n++
	}
}

func (s *ScratchBuffer) Pos() int { return s.n }

func (s *ScratchBuffer) SetByte(pos int, b byte) {
	if pos < s.n {
		s.buf[pos] = b
	}
}

func (s *ScratchBuffer) Since(pos int) []byte {
	if pos > s.n {
		return nil
	}
	return s.buf[pos:s.n]
}

// Bytes returns everything appended so far.
func (s *ScratchBuffer) Bytes() []byte { return s.buf[:s.n] }

// Reset empties the buffer.
func (s *ScratchBuffer) Reset() { s.n = 0 }

// Ring is a byte ring buffer sized at creation. A transport feeds raw
// reads in at one end while the frame scanner consumes from the other; it
// implements InputBuffer for that purpose.
//
// The backing array keeps one slot open to tell full from empty, so the
// full requested capacity is usable.
type Ring struct {
	buf []byte
	r   int
	w   int
}

// NewRing returns a Ring able to buffer capacity bytes.
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]byte, capacity+1)}
}

// Len returns the number of buffered bytes.
func (q *Ring) Len() int {
	if q.w >= q.r {
		return q.w - q.r
	}
	return len(q.buf) - q.r + q.w
}

// Free returns how many more bytes Write can accept.
func (q *Ring) Free() int {
	return len(q.buf) - 1 - q.Len()
}

// Write buffers as much of p as fits and returns how much it took.
func (q *Ring) Write(p []byte) int {
	n := 0
	for _, b := range p {
		next := q.w + 1
		if next == len(q.buf) {
			next = 0
		}
		if next == q.r {
			break
		}
		q.buf[q.w] = b
		q.w = next
		n++
	}
	return n
}

// Read copies up to len(p) buffered bytes into p and returns the count.
func (q *Ring) Read(p []byte) int {
	n := 0
	for n < len(p) && q.r != q.w {
		p[n] = q.buf[q.r]
		q.r++
		if q.r == len(q.buf) {
			q.r = 0
		}
		n++
	}
	return n
}

// Peek returns the buffered bytes in arrival order. When the data wraps
// the end of the backing array it is copied to a fresh contiguous slice,
// since the frame scanner needs whole frames to look at.
func (q *Ring) Peek() []byte {
	if q.r <= q.w {
		return q.buf[q.r:q.w]
	}
	out := make([]byte, q.Len())
	n := copy(out, q.buf[q.r:])
	copy(out[n:], q.buf[:q.w])
	return out
}

// Discard drops the first n buffered bytes.
func (q *Ring) Discard(n int) {
	if n > q.Len() {
		n = q.Len()
	}
	q.r += n
	if q.r >= len(q.buf) {
		q.r -= len(q.buf)
	}
}

// Empty reports whether no bytes are buffered.
func (q *Ring) Empty() bool { return q.r == q.w }

// Reset drops all buffered bytes.
func (q *Ring) Reset() { q.r, q.w = 0, 0 }
