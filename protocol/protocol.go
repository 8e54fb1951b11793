// Package protocol implements the framed console link between a tick core
// and its host: length/sequence-framed messages with variable-length
// integer fields and a CRC-16 trailer.
//
// A frame on the wire looks like:
//
//	offset 0       total frame length, header and trailer included
//	offset 1       sequence byte, SeqBase | (counter & SeqMask)
//	offset 2..     payload: messages, each a uvarint ID then its fields
//	last 3 bytes   CRC-16 big endian, then the sync byte
//
// An empty payload is an acknowledgment. The sequence byte it carries is
// the next frame the sender expects, so the same frame serves as ACK and
// NAK.
package protocol

// Frame layout.
const (
	FrameHeaderSize  = 2
	FrameTrailerSize = 3
	FrameLengthMin   = FrameHeaderSize + FrameTrailerSize
	FrameLengthMax   = 64

	SyncByte = 0x7E
	SeqBase  = 0x10 // high nibble present on every sequence byte
	SeqMask  = 0x0F
)

// Byte offsets within a frame, from the front and from the back.
const (
	framePosLen      = 0
	framePosSeq      = 1
	frameTrailerCRC  = 3
	frameTrailerSync = 1
)
