package protocol

import "errors"

// ErrTruncated is returned when a field runs past the end of its frame.
var ErrTruncated = errors.New("protocol: truncated field")

// Integers on the wire are variable-length quantities, most significant
// group first: each byte carries seven payload bits and a set high bit
// means another byte follows. The first group is sign-extended when its
// top two payload bits are both set, so the single-byte range runs from
// -32 through 95 rather than being symmetric.

// PutVarint appends the encoding of v to out.
func PutVarint(out OutputBuffer, v int32) {
	if !(-(1<<26) <= v && v < 3<<26) {
		out.AppendByte(byte(v>>28)&0x7F | 0x80)
	}
	if !(-(1<<19) <= v && v < 3<<19) {
		out.AppendByte(byte(v>>21)&0x7F | 0x80)
	}
	if !(-(1<<12) <= v && v < 3<<12) {
		out.AppendByte(byte(v>>14)&0x7F | 0x80)
	}
	if !(-(1<<5) <= v && v < 3<<5) {
		out.AppendByte(byte(v>>7)&0x7F | 0x80)
	}
	out.AppendByte(byte(v) & 0x7F)
}

// PutUvarint appends the encoding of v to out. Unsigned values share the
// signed wire form; both ends must agree on the declared type to round-trip
// values past the sign-extension threshold.
func PutUvarint(out OutputBuffer, v uint32) {
	PutVarint(out, int32(v))
}

// Varint decodes a signed integer from the front of *data, advancing the
// slice past the consumed bytes.
func Varint(data *[]byte) (int32, error) {
	if len(*data) == 0 {
		return 0, ErrTruncated
	}
	c := uint32((*data)[0])
	*data = (*data)[1:]

	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	for c&0x80 != 0 {
		if len(*data) == 0 {
			return 0, ErrTruncated
		}
		c = uint32((*data)[0])
		*data = (*data)[1:]
		v = v<<7 | c&0x7F
	}
	return int32(v), nil
}

// Uvarint decodes an unsigned integer from the front of *data.
func Uvarint(data *[]byte) (uint32, error) {
	v, err := Varint(data)
	return uint32(v), err
}

// PutBytes appends p to out as a length-prefixed field.
func PutBytes(out OutputBuffer, p []byte) {
	PutUvarint(out, uint32(len(p)))
	out.Append(p)
}

// Bytes decodes a length-prefixed field from the front of *data. The
// returned slice aliases the input.
func Bytes(data *[]byte) ([]byte, error) {
	n, err := Uvarint(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(*data)) < n {
		return nil, ErrTruncated
	}
	p := (*data)[:n]
	*data = (*data)[n:]
	return p, nil
}

// PutString appends s to out as a length-prefixed field.
func PutString(out OutputBuffer, s string) {
	PutUvarint(out, uint32(len(s)))
	out.Append([]byte(s))
}

// String decodes a length-prefixed field from the front of *data.
func String(data *[]byte) (string, error) {
	p, err := Bytes(data)
	return string(p), err
}
