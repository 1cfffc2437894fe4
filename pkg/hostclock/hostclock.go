// Package hostclock correlates a monotonic device-microsecond counter
// (pkg/timebase) to host wall time using a decayed linear regression, so
// that log lines and diagnostics can report a wall-clock timestamp
// without calling time.Now() on the measurement hot path.
//
// Both readings come from the same process, so there is no round trip
// to compensate for: only the decayed covariance/variance regression
// that turns paired samples into a frequency and offset estimate is
// needed here.
package hostclock

import "sync"

// decay is the exponential weight given to each new sample.
const decay = 1.0 / 30.0

// Estimate is a point-in-time correlation between a device microsecond
// reading and host wall time.
type Estimate struct {
	WallSeconds float64 // host time.Now(), as seconds since an arbitrary epoch
	DeviceUs    int64   // device timebase reading at WallSeconds
	RatePPS     float64 // device microseconds per host second
}

// Correlator tracks the running correlation between device microseconds
// and host wall-clock seconds.
type Correlator struct {
	mu sync.RWMutex

	initialized bool
	est         Estimate

	wallAvg      float64
	wallVariance float64
	devAvg       float64
	devCovar     float64
}

// New returns an empty Correlator; call Initialize (or Update) with the
// first sample pair before using WallSecondsFor, which returns 0 until
// then.
func New() *Correlator {
	return &Correlator{}
}

// Initialize seeds the regression with the first sample.
func (c *Correlator) Initialize(deviceUs int64, wallSeconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallAvg = wallSeconds
	c.devAvg = float64(deviceUs)
	c.est = Estimate{WallSeconds: wallSeconds, DeviceUs: deviceUs, RatePPS: 1_000_000}
	c.initialized = true
}

// Update folds in a new (deviceUs, wallSeconds) sample pair and returns
// the refreshed estimate.
func (c *Correlator) Update(deviceUs int64, wallSeconds float64) Estimate {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		c.wallAvg = wallSeconds
		c.devAvg = float64(deviceUs)
		c.est = Estimate{WallSeconds: wallSeconds, DeviceUs: deviceUs, RatePPS: 1_000_000}
		c.initialized = true
		return c.est
	}

	diffWall := wallSeconds - c.wallAvg
	c.wallAvg += decay * diffWall
	c.wallVariance = (1 - decay) * (c.wallVariance + diffWall*diffWall*decay)

	diffDev := float64(deviceUs) - c.devAvg
	c.devAvg += decay * diffDev
	c.devCovar = (1 - decay) * (c.devCovar + diffWall*diffDev*decay)

	rate := 1_000_000.0
	if c.wallVariance > 0 {
		rate = c.devCovar / c.wallVariance
	}

	c.est = Estimate{
		WallSeconds: c.wallAvg,
		DeviceUs:    int64(c.devAvg),
		RatePPS:     rate,
	}
	return c.est
}

// WallSecondsFor projects the host wall-clock time corresponding to a
// given device microsecond reading, using the current regression.
func (c *Correlator) WallSecondsFor(deviceUs uint64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized || c.est.RatePPS == 0 {
		return 0
	}
	return c.est.WallSeconds + (float64(deviceUs)-float64(c.est.DeviceUs))/c.est.RatePPS
}

// Estimate returns the current correlation snapshot.
func (c *Correlator) Estimate() Estimate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.est
}
