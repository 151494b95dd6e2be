package protocol

// CRC16 computes the block checksum (CRC-16/MCRF4XX, as used by Klipper)
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc)
		b ^= b << 4
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}

// trailer returns the CRC and sync bytes closing a block whose header and
// payload are in block
func trailer(block []byte) []byte {
	crc := CRC16(block)
	return []byte{byte(crc >> 8), byte(crc), MessageValueSync}
}
