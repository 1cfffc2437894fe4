package eeprom

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

const (
	startHeader = 0x55
	cmdRead     = 0x03
	standbyPulse = 600 * time.Microsecond
)

// UnioBitBang is a placeholder UNI/O bus reader over a single
// bidirectional GPIO line. It waits out the standby pulse and drives the
// line high; it does not send the start header, device address, read
// command or address bytes, does not check a device-present handshake,
// and reads no data.
type UnioBitBang struct {
	pin          gpio.PinIO
	bitrateBps   uint32
	deviceAddress byte
}

// NewUnioBitBang returns a bus reader over pin, using deviceAddress as
// the UNI/O device select byte written after the standby pulse.
func NewUnioBitBang(pin gpio.PinIO, bitrateBps uint32, deviceAddress byte) *UnioBitBang {
	return &UnioBitBang{pin: pin, bitrateBps: bitrateBps, deviceAddress: deviceAddress}
}

// Read implements Reader. It returns ErrIO if the pin cannot be driven
// and ErrNoDevice otherwise (including when pin == nil), matching
// rps_eeprom_read's NO_DEVICE status; it never returns data.
func (u *UnioBitBang) Read(addr uint16, length int) (Record, error) {
	if u.pin == nil {
		return Record{}, ErrNoDevice
	}

	time.Sleep(standbyPulse)

	if err := u.pin.Out(gpio.High); err != nil {
		return Record{}, ErrIO
	}
	if length > MaxRecordBytes {
		length = MaxRecordBytes
	}

	// A real implementation bit-bangs startHeader, u.deviceAddress,
	// cmdRead and the two address bytes here, then clocks length data
	// bytes back while watching for the slave's MAK/SAK handshake. This
	// port has no bus to talk to, so it reports the device absent.
	_ = startHeader
	_ = cmdRead
	return Record{}, ErrNoDevice
}
