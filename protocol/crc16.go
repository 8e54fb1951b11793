package protocol

// CRC16 computes the frame checksum over data: CRC-16/CCITT with initial
// value 0xFFFF, computed byte at a time without a lookup table.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		d := b ^ byte(crc)
		d ^= d << 4
		crc = uint16(d)<<8 | crc>>8
		crc ^= uint16(d >> 4)
		crc ^= uint16(d) << 3
	}
	return crc
}
