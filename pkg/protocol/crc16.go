package protocol

// CRC16 computes the CRC-16-CCITT (poly 0x1021, init 0xFFFF, MSB-first,
// no input/output reflection) used to trailer the binary frame encoding;
// the CSV encoding carries no CRC. This is the "CCITT-FALSE" variant, distinct from the
// bit-reversed table trick used elsewhere for wire-protocol framing.
func CRC16(buf []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range buf {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
