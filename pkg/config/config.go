// Package config loads the YAML-backed runtime configuration for the
// measurement pipeline, with compiled-in defaults for every field.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	hosterrors "terpsd/pkg/errors"
)

// Mode selects Gated or Reciprocal counting, mirroring terps_mode_t.
type Mode string

const (
	ModeGated      Mode = "gated"
	ModeReciprocal Mode = "reciprocal"
)

// GPIOUnused mirrors TERPS_GPIO_UNUSED: a pin field set to this value is
// treated as not wired.
const GPIOUnused = 0xFFFFFFFF

// USB vendor/product IDs, from config_default.h. The INFO.DEV reply
// does not include them.
const (
	USBVendorID  = 0x2E8A
	USBProductID = 0x000A
)

// Config is the complete runtime configuration.
type Config struct {
	Mode              Mode    `yaml:"mode"`
	TauMs             uint32  `yaml:"tau_ms"`
	MinIntervalFrac   float32 `yaml:"min_interval_frac"`
	TimebasePPM       float32 `yaml:"timebase_ppm"`
	ADCGain           uint8   `yaml:"adc_gain"`
	ADCRateSPS        uint16  `yaml:"adc_rate_sps"`
	ADCMainsReject    bool    `yaml:"adc_mains_reject"`
	AvgWindow         uint32  `yaml:"avg_window"`
	BinaryFrames      bool    `yaml:"binary_frames"`
	QueueLength       uint32  `yaml:"queue_length"`
	SyncGPIO          uint32  `yaml:"sync_gpio"`
	PPSGPIO           uint32  `yaml:"pps_gpio"`
	FreqGPIO          uint32  `yaml:"freq_gpio"`
	SPICSGPIO         uint32  `yaml:"spi_cs_gpio"`
	SPIDRDYGPIO       uint32  `yaml:"spi_drdy_gpio"`
	SPISCKGPIO        uint32  `yaml:"spi_sck_gpio"`
	SPIMOSIGPIO       uint32  `yaml:"spi_mosi_gpio"`
	SPIMISOGPIO       uint32  `yaml:"spi_miso_gpio"`
	ADCTimeoutMs       uint32 `yaml:"adc_timeout_ms"`
	DebugDeglitchStats bool   `yaml:"debug_deglitch_stats"`

	UnioGPIO       uint32 `yaml:"unio_gpio"`
	UnioBitrateBps uint32 `yaml:"unio_bitrate_bps"`

	SerialPort string `yaml:"serial_port"`
}

// Default returns the compiled-in configuration, matching
// terps_default_config exactly.
func Default() *Config {
	return &Config{
		Mode:               ModeReciprocal,
		TauMs:              100,
		MinIntervalFrac:    0.25,
		TimebasePPM:        0.0,
		ADCGain:            16,
		ADCRateSPS:         20,
		ADCMainsReject:     true,
		AvgWindow:          8,
		BinaryFrames:       false,
		QueueLength:        8,
		SyncGPIO:           3,
		PPSGPIO:            21,
		FreqGPIO:           2,
		SPICSGPIO:          17,
		SPIDRDYGPIO:        20,
		SPISCKGPIO:         18,
		SPIMOSIGPIO:        19,
		SPIMISOGPIO:        16,
		ADCTimeoutMs:       200,
		DebugDeglitchStats: false,
		UnioGPIO:           22,
		UnioBitrateBps:     50_000,
		SerialPort:         "/dev/ttyACM0",
	}
}

// Load reads filename as YAML over a default configuration. If the file
// does not exist, defaults are returned unmodified. Fields present in
// the file override their defaults; fields omitted keep the default.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}

	cfg.ensureDefaults()
	return cfg, nil
}

// Save writes c to filename as YAML.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", filename, err)
	}
	return nil
}

// ensureDefaults fills in any zero-valued field left blank by a partial
// YAML document, matching init_config's clamp-to-default behavior for
// queue_length and adc_timeout_ms.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.TauMs == 0 {
		c.TauMs = def.TauMs
	}
	if c.MinIntervalFrac <= 0 {
		c.MinIntervalFrac = def.MinIntervalFrac
	}
	if c.ADCGain == 0 {
		c.ADCGain = def.ADCGain
	}
	if c.ADCRateSPS == 0 {
		c.ADCRateSPS = def.ADCRateSPS
	}
	if c.AvgWindow == 0 {
		c.AvgWindow = def.AvgWindow
	}
	if c.QueueLength == 0 || c.QueueLength > 64 {
		c.QueueLength = def.QueueLength
	}
	if c.ADCTimeoutMs == 0 {
		c.ADCTimeoutMs = def.ADCTimeoutMs
	}
	if c.SerialPort == "" {
		c.SerialPort = def.SerialPort
	}
}

// Validate reports whether c's fields are internally consistent enough
// to build the runtime components. It never mutates c.
func (c *Config) Validate() error {
	if c.Mode != ModeGated && c.Mode != ModeReciprocal {
		return hosterrors.ConfigValidationError("mode", fmt.Sprintf("must be %q or %q, got %q", ModeGated, ModeReciprocal, c.Mode))
	}
	if c.FreqGPIO == GPIOUnused {
		return hosterrors.ConfigValidationError("freq_gpio", "must be wired")
	}
	if c.TauMs == 0 {
		return hosterrors.ConfigValidationError("tau_ms", "must be non-zero")
	}
	return nil
}
