package ppscal

import "testing"

func TestOnEdge_NoCorrectionOnFirstEdge(t *testing.T) {
	d := New()
	d.OnEdge(0)
	if d.CorrectionPPM() != 0 {
		t.Fatalf("CorrectionPPM() = %v, want 0 after the first edge", d.CorrectionPPM())
	}
	if d.Locked() {
		t.Fatal("should not be locked after a single edge")
	}
}

func TestOnEdge_LocksAfterThreeGoodIntervals(t *testing.T) {
	d := New()
	ts := uint64(0)
	d.OnEdge(ts)
	for i := 0; i < 3; i++ {
		ts += expectedIntervalUs // exact 1s intervals: 0 ppm error
		d.OnEdge(ts)
	}
	if !d.Locked() {
		t.Fatalf("expected locked after 3 clean intervals, lockCounter=%d", d.LockCounter())
	}
}

func TestOnEdge_StaysUnlockedOnNoisyIntervals(t *testing.T) {
	d := New()
	ts := uint64(0)
	d.OnEdge(ts)
	for i := 0; i < 3; i++ {
		ts += expectedIntervalUs + 100_000 // 100ms off: far outside the 5ppm gate
		d.OnEdge(ts)
	}
	if d.Locked() {
		t.Fatal("should not lock on grossly noisy intervals")
	}
}

func TestTick_ResetsOnStaleReference(t *testing.T) {
	d := New()
	ts := uint64(0)
	d.OnEdge(ts)
	for i := 0; i < 3; i++ {
		ts += expectedIntervalUs
		d.OnEdge(ts)
	}
	if !d.Locked() {
		t.Fatal("setup: expected locked before staleness test")
	}

	d.Tick(ts + staleTimeoutUs + 1)

	if d.Locked() {
		t.Fatal("Tick should clear lock after the reference goes stale")
	}
	if d.CorrectionPPM() != 0 {
		t.Fatalf("CorrectionPPM() = %v, want 0 after stale reset", d.CorrectionPPM())
	}
}

func TestStatusFlags(t *testing.T) {
	d := New()
	if d.StatusFlags() != 0 {
		t.Fatal("StatusFlags should be 0 before lock")
	}
	ts := uint64(0)
	d.OnEdge(ts)
	for i := 0; i < 3; i++ {
		ts += expectedIntervalUs
		d.OnEdge(ts)
	}
	if d.StatusFlags() != StatusLocked {
		t.Fatalf("StatusFlags() = %#x, want %#x once locked", d.StatusFlags(), StatusLocked)
	}
}
