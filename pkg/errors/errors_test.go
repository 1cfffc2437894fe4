package errors

import "testing"

func TestHostError_Error(t *testing.T) {
	err := ADCTimeoutError(200)
	want := "[ADC_TIMEOUT] ADC DRDY not asserted within 200ms"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestADCSaturatedError(t *testing.T) {
	err := ADCSaturatedError(8388607)
	if err.Code != ErrADCSaturated {
		t.Fatalf("Code = %v, want %v", err.Code, ErrADCSaturated)
	}
	want := "[ADC_SATURATED] ADC code 8388607 at or beyond saturation threshold"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestEEPROMErrors(t *testing.T) {
	noDevice := EEPROMNoDeviceError()
	if noDevice.Code != ErrEEPROMNoDevice {
		t.Fatalf("Code = %v, want %v", noDevice.Code, ErrEEPROMNoDevice)
	}

	io := EEPROMIOError("start condition not acknowledged")
	if io.Code != ErrEEPROMIO {
		t.Fatalf("Code = %v, want %v", io.Code, ErrEEPROMIO)
	}
	want := "[EEPROM_IO] start condition not acknowledged"
	if io.Error() != want {
		t.Fatalf("Error() = %q, want %q", io.Error(), want)
	}
}

func TestTransportBackpressureError(t *testing.T) {
	err := TransportBackpressureError(100)
	if err.Code != ErrTransportBackpressure {
		t.Fatalf("Code = %v, want %v", err.Code, ErrTransportBackpressure)
	}
	want := "[TRANSPORT_BACKPRESSURE] write capacity unavailable within 100ms"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestUnknownCommandError(t *testing.T) {
	err := UnknownCommandError("FOO.BAR")
	if err.Code != ErrUnknownCommand {
		t.Fatalf("Code = %v, want %v", err.Code, ErrUnknownCommand)
	}
	want := `[UNKNOWN_COMMAND] unrecognized command: "FOO.BAR"`
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConfigValidationError(t *testing.T) {
	err := ConfigValidationError("tau_ms", "must be non-zero")
	if err.Code != ErrConfigValidation {
		t.Fatalf("Code = %v, want %v", err.Code, ErrConfigValidation)
	}
	want := "[CONFIG_VALIDATION] tau_ms: must be non-zero"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
