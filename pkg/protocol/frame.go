// Package protocol encodes measurement Frames for the host link, in
// either a compact binary form trailered with CRC16 or a human-readable
// CSV form without a CRC.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// Flag bits carried in Frame.Flags, mirroring terps_config.h.
const (
	FlagSyncActive  uint8 = 0x01
	FlagADCTimeout  uint8 = 0x02
	FlagPPSLocked   uint8 = 0x04
	FlagADCSaturated uint8 = 0x08
)

// Mode mirrors edgecounter.Mode's wire encoding (0=Gated, 1=Reciprocal)
// without importing edgecounter, keeping this package dependency-free.
type Mode uint8

const (
	ModeGated      Mode = 0
	ModeReciprocal Mode = 1
)

func (m Mode) String() string {
	if m == ModeReciprocal {
		return "RECIP"
	}
	return "GATED"
}

// Frame is one measurement sample ready for transmission to the host.
type Frame struct {
	TsMs        uint32
	FHzX1e4     int32
	TauMs       uint16
	DiodeUV     int32
	AdcGain     uint8
	Flags       uint8
	PpmCorrX1e2 int16
	Mode        Mode
	FHz         float32
	PpmCorr     float32
}

const binaryPayloadLen = 19

// header bytes preceding every binary payload.
var binaryHeaderMagic = [2]byte{0x55, 0xAA}

// EncodeBinary packs f into the wire format: a 3-byte header
// (0x55, 0xAA, payload length), a 19-byte little-endian payload, and a
// little-endian CRC16 trailer over the payload.
func EncodeBinary(f Frame) []byte {
	payload := make([]byte, binaryPayloadLen)
	off := 0
	binary.LittleEndian.PutUint32(payload[off:], f.TsMs)
	off += 4
	binary.LittleEndian.PutUint32(payload[off:], uint32(f.FHzX1e4))
	off += 4
	binary.LittleEndian.PutUint16(payload[off:], f.TauMs)
	off += 2
	binary.LittleEndian.PutUint32(payload[off:], uint32(f.DiodeUV))
	off += 4
	payload[off] = f.AdcGain
	off++
	payload[off] = f.Flags
	off++
	binary.LittleEndian.PutUint16(payload[off:], uint16(f.PpmCorrX1e2))
	off += 2
	payload[off] = byte(f.Mode)
	off++

	out := make([]byte, 0, 3+binaryPayloadLen+2)
	out = append(out, binaryHeaderMagic[0], binaryHeaderMagic[1], byte(off))
	out = append(out, payload[:off]...)
	crc := CRC16(payload[:off])
	crcBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(crcBytes, crc)
	out = append(out, crcBytes...)
	return out
}

// EncodeCSV renders f as one CRLF-terminated CSV line, matching
// usb_cdc_send_frame's TERPS_STREAM_CSV branch exactly:
// ts_ms,f_hz,tau_ms,diode_uV,adc_gain,flags,ppm_corr,MODE\r\n
func EncodeCSV(f Frame) []byte {
	line := fmt.Sprintf("%d,%.4f,%d,%.1f,%d,%d,%.2f,%s\r\n",
		f.TsMs, f.FHz, f.TauMs, float32(f.DiodeUV), f.AdcGain, f.Flags, f.PpmCorr, f.Mode)
	return []byte(line)
}
