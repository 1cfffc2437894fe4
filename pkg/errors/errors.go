// Package errors gives every non-fatal condition in the measurement
// pipeline a stable code for logging, without treating any of them as
// fatal -- the system self-restarts every window regardless of the
// error kind.
package errors

import "fmt"

// ErrorCode represents the category of error.
type ErrorCode string

const (
	ErrADCTimeout            ErrorCode = "ADC_TIMEOUT"
	ErrADCSaturated          ErrorCode = "ADC_SATURATED"
	ErrEEPROMNoDevice        ErrorCode = "EEPROM_NO_DEVICE"
	ErrEEPROMIO              ErrorCode = "EEPROM_IO"
	ErrTransportBackpressure ErrorCode = "TRANSPORT_BACKPRESSURE"
	ErrUnknownCommand        ErrorCode = "UNKNOWN_COMMAND"
	ErrConfigValidation      ErrorCode = "CONFIG_VALIDATION"
)

// HostError is the unified error type for the host system.
type HostError struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *HostError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// New creates a new HostError.
func New(code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message}
}

// ADCTimeoutError creates an error for a DRDY timeout on the ADC.
func ADCTimeoutError(timeoutMs uint32) *HostError {
	return New(ErrADCTimeout, fmt.Sprintf("ADC DRDY not asserted within %dms", timeoutMs))
}

// ADCSaturatedError creates an error for a saturated ADC reading.
func ADCSaturatedError(rawCode int32) *HostError {
	return New(ErrADCSaturated, fmt.Sprintf("ADC code %d at or beyond saturation threshold", rawCode))
}

// EEPROMNoDeviceError creates an error for an absent UNI/O device.
func EEPROMNoDeviceError() *HostError {
	return New(ErrEEPROMNoDevice, "no device responded on UNI/O bus")
}

// EEPROMIOError creates an error for a UNI/O bus-level failure.
func EEPROMIOError(reason string) *HostError {
	return New(ErrEEPROMIO, reason)
}

// TransportBackpressureError creates an error for a frame or line write
// that could not acquire link capacity before its deadline.
func TransportBackpressureError(timeoutMs uint32) *HostError {
	return New(ErrTransportBackpressure, fmt.Sprintf("write capacity unavailable within %dms", timeoutMs))
}

// UnknownCommandError creates an error for an unrecognized host command
// line.
func UnknownCommandError(line string) *HostError {
	return New(ErrUnknownCommand, fmt.Sprintf("unrecognized command: %q", line))
}

// ConfigValidationError creates an error for a configuration field that
// fails validation.
func ConfigValidationError(field, reason string) *HostError {
	return New(ErrConfigValidation, fmt.Sprintf("%s: %s", field, reason))
}
