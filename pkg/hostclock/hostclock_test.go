package hostclock

import (
	"math"
	"testing"
)

func TestCorrelator_ConvergesAtNominalRate(t *testing.T) {
	c := New()
	// Device clock runs at 1,000,000 us per host second, with no drift.
	c.Initialize(0, 100.0)
	for i := 1; i <= 200; i++ {
		wall := 100.0 + float64(i)
		dev := int64(i) * 1_000_000
		c.Update(dev, wall)
	}

	est := c.Estimate()
	if math.Abs(est.RatePPS-1_000_000) > 100 {
		t.Fatalf("RatePPS = %v, want close to 1,000,000", est.RatePPS)
	}
}

func TestCorrelator_WallSecondsForProjectsForward(t *testing.T) {
	c := New()
	c.Initialize(0, 1000.0)
	for i := 1; i <= 60; i++ {
		c.Update(int64(i)*1_000_000, 1000.0+float64(i))
	}

	got := c.WallSecondsFor(uint64(65_000_000))
	if math.Abs(got-1065.0) > 1.0 {
		t.Fatalf("WallSecondsFor(65e6) = %v, want close to 1065", got)
	}
}

func TestCorrelator_UninitializedReturnsZero(t *testing.T) {
	c := New()
	if got := c.WallSecondsFor(1000); got != 0 {
		t.Fatalf("WallSecondsFor on uninitialized Correlator = %v, want 0", got)
	}
}
