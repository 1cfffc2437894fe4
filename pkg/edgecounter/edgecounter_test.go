package edgecounter

import (
	"testing"
)

type fakeClock struct {
	now uint64
}

func (c *fakeClock) NowUs() uint64 { return c.now }

type collectingSink struct {
	results []FreqResult
}

func (s *collectingSink) TryPush(r FreqResult) bool {
	s.results = append(s.results, r)
	return true
}

func TestReciprocal_EmitsAfterTargetPulses(t *testing.T) {
	clock := &fakeClock{}
	sink := &collectingSink{}
	c := New(clock, sink, 0.25)

	// Seed a frequency estimate so the target-edge count is small and
	// predictable: freq=1000Hz over 100ms tau => 100 expected edges,
	// which is above the MIN_RECIP_EDGES=64 floor.
	c.freqEstimateHz = 1000
	c.StartWindow(Reciprocal, 100)

	if c.targetEdges != 100 {
		t.Fatalf("targetEdges = %d, want 100", c.targetEdges)
	}

	ts := uint64(1000)
	for i := 0; i < 100; i++ {
		clock.now = ts
		c.OnEdge(ts)
		ts += 1000 // 1ms apart, well above the deglitch deadband
	}

	if len(sink.results) != 1 {
		t.Fatalf("got %d results, want 1", len(sink.results))
	}
	r := sink.results[0]
	if r.Pulses != 100 {
		t.Fatalf("Pulses = %d, want 100", r.Pulses)
	}
	if r.Mode != Reciprocal {
		t.Fatalf("Mode = %v, want Reciprocal", r.Mode)
	}
}

func TestGated_GateTimerClosesWindow(t *testing.T) {
	clock := &fakeClock{}
	sink := &collectingSink{}
	c := New(clock, sink, 0.25)
	c.freqEstimateHz = 1000
	c.updateMinIntervalLocked()

	clock.now = 5000
	c.StartWindow(Gated, 1) // 1ms gate, fires the real timer quickly in test

	clock.now = 5100
	c.OnEdge(5100)
	clock.now = 5300
	c.OnEdge(5300)

	// Directly exercise the gate-expiry path rather than sleeping on the
	// real timer, since Counter uses time.AfterFunc against wall time
	// while the test drives a fake logical clock.
	c.onGateExpired()

	if len(sink.results) != 1 {
		t.Fatalf("got %d results, want 1", len(sink.results))
	}
	if sink.results[0].Timeout != true {
		t.Fatal("gate-closed window should be marked Timeout")
	}
}

func TestDeglitch_RejectsFastEdges(t *testing.T) {
	clock := &fakeClock{}
	sink := &collectingSink{}
	c := New(clock, sink, 0.25)
	c.freqEstimateHz = 1000 // min_interval_us = 250 at frac 0.25
	c.updateMinIntervalLocked()
	c.StartWindow(Reciprocal, 1000)
	c.targetEdges = 1000000 // never emit; just inspect deglitch counters

	c.OnEdge(1000)
	c.OnEdge(1100) // 100us later, below the 250us deadband: glitch
	c.OnEdge(2000) // 900us later: kept

	stats := c.Stats()
	if stats.RawEdges != 3 {
		t.Fatalf("RawEdges = %d, want 3", stats.RawEdges)
	}
	if stats.KeptPulses != 2 {
		t.Fatalf("KeptPulses = %d, want 2", stats.KeptPulses)
	}
	if stats.GlitchCount != 1 {
		t.Fatalf("GlitchCount = %d, want 1", stats.GlitchCount)
	}
}

func TestSyncForced_EmitsOnFallingEdge(t *testing.T) {
	clock := &fakeClock{now: 1000}
	sink := &collectingSink{}
	c := New(clock, sink, 0.25)
	c.freqEstimateHz = 1000
	c.StartWindow(Reciprocal, 100)

	c.OnSync(true) // rising: force a fresh window
	c.OnEdge(1000)
	c.OnEdge(2000)

	clock.now = 3000
	c.OnSync(false) // falling: force-close

	if len(sink.results) != 1 {
		t.Fatalf("got %d results, want 1", len(sink.results))
	}
	r := sink.results[0]
	if !r.SyncActive {
		t.Fatal("SyncActive should be true for a sync-forced window")
	}
	if r.Timeout {
		t.Fatal("sync-forced falling edge should emit with Timeout=false")
	}
}

func TestStop_LeavesCounterInactive(t *testing.T) {
	clock := &fakeClock{now: 1000}
	sink := &collectingSink{}
	c := New(clock, sink, 0.25)
	c.StartWindow(Reciprocal, 100)
	c.OnEdge(1000)

	c.Stop()

	if c.active {
		t.Fatal("Stop should leave the counter inactive")
	}
}
