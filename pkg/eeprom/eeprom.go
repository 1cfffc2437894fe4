// Package eeprom models the UNI/O one-wire EEPROM that stores the
// device's calibration coefficients.
//
// Grounded on firmware_pico2/include/eeprom_coeff.h for the record shape
// and status codes, and src/uni_o.cpp for the device/address framing a
// real bus implementation performs before returning data.
package eeprom

import "errors"

// MaxRecordBytes is the largest coefficient blob a Record can hold,
// matching rps_eeprom_t.bytes[512].
const MaxRecordBytes = 512

// AddressSpace is the size of the EEPROM's address space; DUMP requests
// beyond it are rejected by the caller (pkg/transport).
const AddressSpace = 0x200

// ErrNoDevice reports that no EEPROM responded on the bus, mirroring
// RPS_EEPROM_NO_DEVICE / the CLI's "ERR UNIO_NO_DEVICE".
var ErrNoDevice = errors.New("eeprom: no device on bus")

// ErrIO reports a bus-level read failure distinct from device absence,
// mirroring RPS_EEPROM_IO_ERROR / the CLI's "ERR EEPROM_IO".
var ErrIO = errors.New("eeprom: io error")

// Record is one successful read, mirroring rps_eeprom_t.
type Record struct {
	DeviceAddress byte
	StartAddr     uint16
	Data          []byte
}

// Reader is the contract every EEPROM backend satisfies.
type Reader interface {
	Read(addr uint16, length int) (Record, error)
}

// Coefficients models the polynomial calibration constants a real
// EEPROM.PARSE implementation would decode from a Record. Parsing itself
// remains unimplemented (the CLI answers EEPROM.PARSE with
// "ERR UNSUPPORTED"), but the data shape is modeled here so that a future
// parser has somewhere to write into.
type Coefficients struct {
	// DiodeUvToCelsius are polynomial coefficients (lowest order first)
	// mapping diode microvolts to temperature in degrees Celsius.
	DiodeUvToCelsius []float64
	// FreqHzToPressure are polynomial coefficients (lowest order first)
	// mapping resonator frequency in hertz to pressure.
	FreqHzToPressure []float64
}
