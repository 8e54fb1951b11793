package protocol

import (
	"bytes"
	"testing"
)

func TestVarintRoundTrip(t *testing.T) {
	testCases := []int32{
		0, 1, -1,
		-32, -33, // single-byte sign-extension boundary
		95, 96, // single-byte unsigned boundary
		127, -128, 255, 300,
		-(1 << 12), 3<<12 - 1, 3 << 12,
		-(1 << 19), 3 << 19,
		-(1 << 26), 3 << 26,
		65535, -65536, 1000000,
		2147483647, -2147483648,
	}

	for _, want := range testCases {
		out := NewScratch()
		PutVarint(out, want)
		encoded := out.Bytes()

		data := encoded
		got, err := Varint(&data)
		if err != nil {
			t.Errorf("Varint(%d): decode failed: %v", want, err)
			continue
		}
		if got != want {
			t.Errorf("Varint round trip: want %d, got %d (encoded %v)", want, got, encoded)
		}
		if len(data) != 0 {
			t.Errorf("Varint(%d): %d bytes left over", want, len(data))
		}
	}
}

func TestVarintKnownEncodings(t *testing.T) {
	testCases := []struct {
		v       int32
		encoded []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{-1, []byte{0x7F}},
		{-32, []byte{0x60}},
		{95, []byte{0x5F}},
		{96, []byte{0x80, 0x60}},
		{-33, []byte{0xFF, 0x5F}},
		{300, []byte{0x82, 0x2C}},
	}

	for _, tc := range testCases {
		out := NewScratch()
		PutVarint(out, tc.v)
		if !bytes.Equal(out.Bytes(), tc.encoded) {
			t.Errorf("PutVarint(%d) = %v, want %v", tc.v, out.Bytes(), tc.encoded)
		}
	}
}

func TestUvarintRoundTrip(t *testing.T) {
	testCases := []uint32{0, 1, 95, 96, 255, 1000, 65535, 1000000, 0xFFFFFFFF}

	for _, want := range testCases {
		out := NewScratch()
		PutUvarint(out, want)

		data := out.Bytes()
		got, err := Uvarint(&data)
		if err != nil {
			t.Errorf("Uvarint(%d): decode failed: %v", want, err)
			continue
		}
		if got != want {
			t.Errorf("Uvarint round trip: want %d, got %d", want, got)
		}
	}
}

func TestVarintTruncated(t *testing.T) {
	empty := []byte{}
	if _, err := Varint(&empty); err != ErrTruncated {
		t.Errorf("decode of empty input: want ErrTruncated, got %v", err)
	}

	// Continuation bit set with nothing following.
	dangling := []byte{0x80}
	if _, err := Varint(&dangling); err != ErrTruncated {
		t.Errorf("decode of dangling continuation: want ErrTruncated, got %v", err)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	testCases := [][]byte{
		{},
		{0x01},
		{0x01, 0x02, 0x03},
		{0xFF, 0xFE, 0x7E}, // sync byte inside a field is fine
		make([]byte, 48),
	}

	for i, want := range testCases {
		out := NewScratch()
		PutBytes(out, want)

		data := out.Bytes()
		got, err := Bytes(&data)
		if err != nil {
			t.Errorf("case %d: decode failed: %v", i, err)
			continue
		}
		if !bytes.Equal(got, want) {
			t.Errorf("case %d: got %v, want %v", i, got, want)
		}
		if len(data) != 0 {
			t.Errorf("case %d: %d bytes left over", i, len(data))
		}
	}
}

func TestBytesTruncated(t *testing.T) {
	// Length prefix promises five bytes, only three follow.
	data := []byte{0x05, 0x01, 0x02, 0x03}
	if _, err := Bytes(&data); err != ErrTruncated {
		t.Errorf("want ErrTruncated, got %v", err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	testCases := []string{"", "tick", "loops_per_tick=%u tick_frequency=%u"}

	for _, want := range testCases {
		out := NewScratch()
		PutString(out, want)

		data := out.Bytes()
		got, err := String(&data)
		if err != nil {
			t.Errorf("String(%q): decode failed: %v", want, err)
			continue
		}
		if got != want {
			t.Errorf("String round trip: want %q, got %q", want, got)
		}
	}
}
