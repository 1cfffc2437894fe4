// Package edgecounter implements the two-mode pulse counter at the heart
// of the frequency bridge: Gated (fixed time window, variable pulse
// count) and Reciprocal (fixed pulse target, variable window) counting,
// with deglitching and a sync-pin override.
//
// Grounded on firmware_pico2/src/edge_counter.cpp. handle_edge_locked,
// handle_sync_locked and enqueue_result_locked map directly onto
// Counter.OnEdge, Counter.OnSync and Counter.enqueueLocked; the RP2040
// hardware alarm that closes a Gated window is replaced by a
// time.AfterFunc-driven gate timer.
package edgecounter

import (
	"math"
	"sync"
	"time"
)

// Mode selects how a measurement window is bounded.
type Mode int

const (
	// Gated counts pulses over a fixed time window.
	Gated Mode = iota
	// Reciprocal counts elapsed time over a fixed number of pulses.
	Reciprocal
)

func (m Mode) String() string {
	if m == Reciprocal {
		return "reciprocal"
	}
	return "gated"
}

const (
	minRecipEdges       = 64
	defaultFreqEstimate = 30000.0
	maxFreqLimit        = 1_000_000.0
	minFreqLimit        = 1.0
)

// FreqResult is one completed measurement window, handed off to the
// measurement pipeline over a bounded queue.
type FreqResult struct {
	Mode          Mode
	Pulses        uint32
	RawPulses     uint32
	MinIntervalUs uint32
	TauMs         uint32
	StartUs       uint64
	EndUs         uint64
	FHzX1e4       int32
	FHz           float32
	GlitchCount   uint32
	SyncActive    bool
	Timeout       bool
}

// Sink receives completed windows. *ringqueue.Queue[FreqResult] satisfies
// this with its TryPush method.
type Sink interface {
	TryPush(FreqResult) bool
}

// Clock supplies the current time in microseconds. *timebase.Clock and
// timebase.Now both satisfy the function form via ClockFunc.
type Clock interface {
	NowUs() uint64
}

// ClockFunc adapts a plain func() uint64 (such as timebase.Now) to Clock.
type ClockFunc func() uint64

// NowUs implements Clock.
func (f ClockFunc) NowUs() uint64 { return f() }

func clampFreq(v float32) float32 {
	if v < minFreqLimit {
		return minFreqLimit
	}
	if v > maxFreqLimit {
		return maxFreqLimit
	}
	return v
}

// Counter is a mutex-protected state machine standing in for the
// interrupt-driven counter in edge_counter.cpp. OnEdge, OnSync and the
// gate-timer callback all take the same lock a real ISR would take.
type Counter struct {
	clock Clock
	sink  Sink

	mu sync.Mutex

	mode      Mode
	active    bool
	windowOpn bool
	syncFcd   bool

	tauMs        uint32
	pulses       uint32
	targetEdges  uint32
	rawEdges     uint32
	glitchCount  uint32
	minIntervalUs uint32
	minIntervalFrac float32
	freqEstimateHz  float32
	timebasePPM     float32

	startUs   uint64
	endUs     uint64
	lastEdgeUs uint64

	gateTimer *time.Timer
}

// New constructs a Counter. minIntervalFrac <= 0 is treated as the
// firmware default of 0.25.
func New(clock Clock, sink Sink, minIntervalFrac float32) *Counter {
	if minIntervalFrac <= 0 {
		minIntervalFrac = 0.25
	}
	c := &Counter{
		clock:           clock,
		sink:            sink,
		freqEstimateHz:  defaultFreqEstimate,
		minIntervalFrac: minIntervalFrac,
	}
	c.updateMinIntervalLocked()
	return c
}

func (c *Counter) updateMinIntervalLocked() {
	freq := clampFreq(c.freqEstimateHz)
	frac := c.minIntervalFrac
	if frac <= 0 {
		frac = 0.25
	}
	basePeriodUs := 1e6 / freq
	minInterval := uint32(basePeriodUs * frac)
	if minInterval < 1 {
		minInterval = 1
	}
	c.minIntervalUs = minInterval
}

func (c *Counter) resetLocked() {
	c.active = false
	c.windowOpn = false
	c.syncFcd = false
	c.pulses = 0
	c.rawEdges = 0
	c.targetEdges = 0
	c.glitchCount = 0
	c.startUs = 0
	c.endUs = 0
	c.lastEdgeUs = 0
	if c.gateTimer != nil {
		c.gateTimer.Stop()
		c.gateTimer = nil
	}
}

func (c *Counter) enqueueLocked(timeoutFlag bool) {
	if !c.windowOpn {
		c.resetLocked()
		return
	}

	startUs := c.startUs
	endUs := c.endUs
	if endUs <= startUs {
		endUs = startUs + 1
	}
	elapsedUs := endUs - startUs
	pulses := c.pulses
	raw := c.rawEdges

	if pulses == 0 || elapsedUs == 0 {
		c.resetLocked()
		return
	}

	freqHz := float32(pulses) * 1e6 / float32(elapsedUs)
	freqHz *= 1.0 + c.timebasePPM*1e-6
	c.freqEstimateHz = freqHz
	c.updateMinIntervalLocked()

	result := FreqResult{
		Mode:          c.mode,
		Pulses:        pulses,
		RawPulses:     raw,
		MinIntervalUs: c.minIntervalUs,
		TauMs:         uint32(float64(elapsedUs)/1000.0 + 0.5),
		StartUs:       startUs,
		EndUs:         endUs,
		FHzX1e4:       int32(math.Round(float64(freqHz) * 1e4)),
		FHz:           freqHz,
		GlitchCount:   c.glitchCount,
		SyncActive:    c.syncFcd,
		Timeout:       timeoutFlag,
	}

	c.sink.TryPush(result)
	c.resetLocked()
}

func (c *Counter) computeTargetEdgesLocked(tauMs uint32) {
	freq := clampFreq(c.freqEstimateHz)
	expected := freq * float32(tauMs) / 1000.0
	edges := uint32(expected + 0.5)
	if edges < minRecipEdges {
		edges = minRecipEdges
	}
	c.targetEdges = edges
}

func (c *Counter) startWindowLocked(mode Mode, tauMs uint32) {
	c.mode = mode
	c.tauMs = tauMs
	c.pulses = 0
	c.rawEdges = 0
	c.glitchCount = 0
	c.lastEdgeUs = 0
	c.syncFcd = false
	c.active = true
	c.windowOpn = mode == Gated

	if c.windowOpn {
		c.startUs = c.clock.NowUs()
	} else {
		c.startUs = 0
	}
	c.endUs = c.startUs

	if mode == Reciprocal {
		c.computeTargetEdgesLocked(tauMs)
		return
	}

	if c.gateTimer != nil {
		c.gateTimer.Stop()
	}
	c.gateTimer = time.AfterFunc(time.Duration(tauMs)*time.Millisecond, c.onGateExpired)
}

func (c *Counter) onGateExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active && c.mode == Gated {
		c.endUs = c.clock.NowUs()
		c.enqueueLocked(true)
	}
}

// StartWindow begins a new measurement window. tauMs of 0 is rejected by
// the caller (cmd/terpsd resolves it against the configured default
// before calling in, mirroring freq_counter_start_window).
func (c *Counter) StartWindow(mode Mode, tauMs uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startWindowLocked(mode, tauMs)
}

// Stop force-closes any open window, emitting an in-progress
// measurement with Timeout=true, matching freq_counter_stop.
func (c *Counter) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueueLocked(true)
	c.resetLocked()
}

func (c *Counter) handleEdgeLocked(timestampUs uint64) {
	if !c.active {
		return
	}

	c.rawEdges++
	if c.lastEdgeUs != 0 {
		delta := timestampUs - c.lastEdgeUs
		if delta < uint64(c.minIntervalUs) {
			c.glitchCount++
			return
		}
	}

	c.lastEdgeUs = timestampUs
	if !c.windowOpn {
		c.windowOpn = true
		c.startUs = timestampUs
	}
	c.endUs = timestampUs
	c.pulses++

	if c.mode == Reciprocal && c.pulses >= c.targetEdges {
		c.enqueueLocked(false)
	}
}

// OnEdge processes a freq-pin rising edge observed at ts (microseconds).
// Safe to call from any goroutine, including a synthetic edge-injector
// in tests or a real GPIO edge-notification goroutine.
func (c *Counter) OnEdge(ts uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handleEdgeLocked(ts)
}

func (c *Counter) handleSyncLocked(levelHigh bool) {
	if levelHigh {
		c.startWindowLocked(c.mode, c.tauMs)
		c.syncFcd = true
		return
	}
	if !c.active {
		return
	}
	c.endUs = c.clock.NowUs()
	c.enqueueLocked(false)
}

// OnSync processes a sync-pin transition: rising forces a fresh window to
// start, falling force-closes the current one.
func (c *Counter) OnSync(levelHigh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handleSyncLocked(levelHigh)
}

// UpdateTimebasePPM installs a new PPS-derived frequency correction,
// applied to the next completed window.
func (c *Counter) UpdateTimebasePPM(ppmCorrection float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timebasePPM = ppmCorrection
}

// LastFrequency returns the most recent running frequency estimate used
// to size the deglitch deadband and the Reciprocal pulse target.
func (c *Counter) LastFrequency() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freqEstimateHz
}

// SetMinIntervalFrac adjusts the deglitch deadband fraction and
// immediately recomputes the deadband from the current frequency
// estimate.
func (c *Counter) SetMinIntervalFrac(frac float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minIntervalFrac = frac
	c.updateMinIntervalLocked()
}

// DeglitchStats is a point-in-time snapshot for diagnostics, mirroring
// what main.cpp's debug_deglitch_stats line prints.
type DeglitchStats struct {
	RawEdges      uint32
	KeptPulses    uint32
	GlitchCount   uint32
	MinIntervalUs uint32
}

// Stats returns a snapshot of the in-progress window's counters.
func (c *Counter) Stats() DeglitchStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return DeglitchStats{
		RawEdges:      c.rawEdges,
		KeptPulses:    c.pulses,
		GlitchCount:   c.glitchCount,
		MinIntervalUs: c.minIntervalUs,
	}
}
