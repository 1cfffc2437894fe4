// Package pipeline fuses a completed frequency window with the diode ADC
// reading and PPS lock state into a Frame, then rearms the edge counter
// for the next window.
package pipeline

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"terpsd/pkg/adc"
	"terpsd/pkg/diag"
	"terpsd/pkg/edgecounter"
	hosterrors "terpsd/pkg/errors"
	"terpsd/pkg/protocol"
	"terpsd/pkg/ringqueue"
)

// FrameSink receives completed frames for transmission, satisfied by
// *ringqueue.Queue[protocol.Frame].
type FrameSink interface {
	TryPush(protocol.Frame) bool
}

// Rearmer starts the next measurement window, satisfied by
// *edgecounter.Counter.
type Rearmer interface {
	StartWindow(mode edgecounter.Mode, tauMs uint32)
}

// PPSStatus supplies the current disciplining correction and lock flag,
// satisfied by *ppscal.Disciplinor.
type PPSStatus interface {
	CorrectionPPM() float32
	PPMCorrX1e2() int16
	StatusFlags() uint8
}

// Config carries the subset of pkg/config.Config the pipeline needs,
// kept narrow so tests don't need to build a full Config.
type Config struct {
	AdcGain            uint8
	AdcTimeoutMs       uint32
	TauMs              uint32
	Mode               edgecounter.Mode
	DebugDeglitchStats bool
}

// Worker is the goroutine standing in for core1: it blocks on the
// frequency-result queue, fuses each result with an ADC sample and the
// PPS status, and pushes the resulting Frame downstream.
type Worker struct {
	freqQueue *ringqueue.Queue[edgecounter.FreqResult]
	frameSink FrameSink
	adcDriver adc.Driver
	pps       PPSStatus
	rearm     Rearmer
	collector *diag.Collector
	cfg       Config
	log       *logrus.Logger

	lastDiodeUV int32
}

// New constructs a Worker. log may be nil, in which case a discarding
// logger is used. collector may be nil, in which case glitch/timeout
// counts are simply not recorded.
func New(freqQueue *ringqueue.Queue[edgecounter.FreqResult], frameSink FrameSink, adcDriver adc.Driver, pps PPSStatus, rearm Rearmer, collector *diag.Collector, cfg Config, log *logrus.Logger) *Worker {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Worker{
		freqQueue: freqQueue,
		frameSink: frameSink,
		adcDriver: adcDriver,
		pps:       pps,
		rearm:     rearm,
		collector: collector,
		cfg:       cfg,
		log:       log,
	}
}

// Run blocks, processing frequency results until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	for {
		freq, ok := w.freqQueue.PopBlocking(ctx)
		if !ok {
			return
		}
		w.processResult(freq)
	}
}

func (w *Worker) processResult(freq edgecounter.FreqResult) {
	var frameFlags uint8
	if freq.SyncActive {
		frameFlags |= protocol.FlagSyncActive
	}

	if w.collector != nil {
		w.collector.GlitchCount.Add(float64(freq.GlitchCount))
		if freq.Timeout {
			w.collector.WindowTimeouts.Inc()
		}
	}

	uv, adcFlags, ok := w.adcDriver.ReadMicrovolts(w.cfg.AdcTimeoutMs)
	if ok {
		w.lastDiodeUV = uv
	}
	frameFlags |= adcFlags
	frameFlags |= w.pps.StatusFlags()

	if !ok && adcFlags&protocol.FlagADCTimeout != 0 {
		err := hosterrors.ADCTimeoutError(w.cfg.AdcTimeoutMs)
		if w.cfg.DebugDeglitchStats {
			w.log.WithError(err).WithField("component", "ads1220").Warn("DRDY timeout")
		}
	}
	if adcFlags&protocol.FlagADCSaturated != 0 {
		err := hosterrors.ADCSaturatedError(uv)
		w.log.WithError(err).WithField("component", "ads1220").Debug("adc saturated")
	}
	if w.cfg.DebugDeglitchStats && freq.Timeout {
		w.log.WithFields(logrus.Fields{"component": "freq", "pulses": freq.Pulses}).Info("window timeout")
	}
	if w.cfg.DebugDeglitchStats {
		w.log.WithFields(logrus.Fields{
			"raw":             freq.RawPulses,
			"kept":            freq.Pulses,
			"dropped":         freq.GlitchCount,
			"min_interval_us": freq.MinIntervalUs,
		}).Debug("deglitch stats")
	}

	frame := protocol.Frame{
		TsMs:        uint32(freq.EndUs / 1000),
		FHzX1e4:     freq.FHzX1e4,
		TauMs:       uint16(freq.TauMs),
		FHz:         freq.FHz,
		Mode:        protocol.Mode(freq.Mode),
		DiodeUV:     w.lastDiodeUV,
		AdcGain:     w.cfg.AdcGain,
		Flags:       frameFlags,
		PpmCorr:     w.pps.CorrectionPPM(),
		PpmCorrX1e2: w.pps.PPMCorrX1e2(),
	}

	w.frameSink.TryPush(frame)
	w.rearm.StartWindow(w.cfg.Mode, w.cfg.TauMs)
}
