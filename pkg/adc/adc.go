// Package adc defines the ADS1220 driver contract used to sample the
// temperature-sensing diode voltage, plus a deterministic simulated
// implementation for hardware-free operation and tests.
//
// Grounded on firmware_pico2/include/ads1220.h and src/ads1220.cpp: the
// gain/vref scaling, exponential average window, timeout and saturation
// semantics are carried over unchanged.
package adc

import "terpsd/pkg/protocol"

const (
	vrefUV    = 2_048_000
	fullScale = 8_388_608
	// SaturationCode is the 24-bit two's complement magnitude at or
	// beyond which a reading is flagged saturated.
	SaturationCode = 0x7FFFF0
)

// Config mirrors ads1220_config_t.
type Config struct {
	Gain          uint8
	RateSPS       uint16
	MainsReject   bool
	AverageWindow uint32
}

// Driver is the contract every ADC backend (simulated or real hardware)
// satisfies. ReadMicrovolts blocks until a conversion is ready or
// timeout elapses.
type Driver interface {
	Init(cfg Config) error
	ApplyConfig(cfg Config)
	ReadMicrovolts(timeoutMs uint32) (uV int32, flags uint8, ok bool)
	Sleep()
	Wake()
}

// scaleRawCode converts a signed 24-bit ADC code to microvolts at the
// configured gain, matching ads1220_read_uV's fixed-point arithmetic.
func scaleRawCode(raw int32, gain uint8) int32 {
	g := int64(gain)
	if g <= 0 {
		g = 1
	}
	microvolts := int64(raw) * vrefUV
	microvolts /= g * fullScale
	return int32(microvolts)
}

// averager applies the same running exponential smoothing as
// ads1220_read_uV: the first sample seeds the filter, then
// filtered += (x - filtered) / window.
type averager struct {
	window   uint32
	filtered int32
	seeded   bool
}

func (a *averager) apply(microvolts int32) int32 {
	if a.window <= 1 {
		return microvolts
	}
	if !a.seeded {
		a.filtered = microvolts
		a.seeded = true
		return a.filtered
	}
	a.filtered += int32((int64(microvolts) - int64(a.filtered)) / int64(a.window))
	return a.filtered
}

func saturationFlags(raw int32) uint8 {
	if raw >= SaturationCode || raw <= -SaturationCode {
		return protocol.FlagADCSaturated
	}
	return 0
}
