package adc

import (
	"math"
	"sync"
	"time"

	"terpsd/pkg/protocol"
)

// Simulated is a deterministic ADC backend for benches and tests: it
// generates a slowly drifting diode voltage from the wall clock instead
// of reading real silicon. It honors the same averaging window as the
// real driver.
type Simulated struct {
	mu       sync.Mutex
	cfg      Config
	avg      averager
	epoch    time.Time
	forceTO  bool
	forceSat bool
}

// NewSimulated returns a Simulated driver, uninitialized until Init is
// called.
func NewSimulated() *Simulated {
	return &Simulated{epoch: time.Now()}
}

// Init implements Driver.
func (s *Simulated) Init(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.avg = averager{window: cfg.AverageWindow}
	return nil
}

// ApplyConfig implements Driver, resetting the average filter exactly as
// ads1220_apply_config does.
func (s *Simulated) ApplyConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.avg = averager{window: cfg.AverageWindow}
}

// ForceTimeout makes every ReadMicrovolts call report a DRDY timeout
// until it is called again with on=false, for exercising the pipeline's
// graceful-degradation path in tests.
func (s *Simulated) ForceTimeout(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceTO = on
}

// ForceSaturation makes every reading report the saturated flag until it
// is called again with on=false.
func (s *Simulated) ForceSaturation(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceSat = on
}

// ReadMicrovolts implements Driver.
func (s *Simulated) ReadMicrovolts(timeoutMs uint32) (int32, uint8, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forceTO {
		return 0, protocol.FlagADCTimeout, false
	}

	t := time.Since(s.epoch).Seconds()
	// A gentle sinusoidal drift around a plausible forward-biased
	// silicon diode voltage (~600 mV) referenced to the ADC's gain.
	raw := int32(20000.0 * math.Sin(t/17.0))
	if s.forceSat {
		raw = SaturationCode
	}

	flags := saturationFlags(raw)
	uv := scaleRawCode(raw, s.cfg.Gain) + 600_000
	return s.avg.apply(uv), flags, true
}

// Sleep implements Driver; a no-op for the simulated backend.
func (s *Simulated) Sleep() {}

// Wake implements Driver; a no-op for the simulated backend.
func (s *Simulated) Wake() {}
