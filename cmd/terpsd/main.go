// Command terpsd runs the frequency/pressure bridge host process: it
// wires the edge counter, PPS disciplining filter and measurement
// pipeline together and streams frames to a host link.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"terpsd/pkg/adc"
	"terpsd/pkg/config"
	"terpsd/pkg/diag"
	"terpsd/pkg/edgecounter"
	"terpsd/pkg/eeprom"
	hosterrors "terpsd/pkg/errors"
	"terpsd/pkg/hostclock"
	"terpsd/pkg/logging"
	"terpsd/pkg/pipeline"
	"terpsd/pkg/ppscal"
	"terpsd/pkg/protocol"
	"terpsd/pkg/ringqueue"
	"terpsd/pkg/timebase"
	"terpsd/pkg/transport"
)

const frameQueueDepth = 16

func main() {
	var (
		configPath  = flag.String("config", "", "path to a YAML config file (defaults compiled in if absent)")
		mock        = flag.Bool("mock", true, "use simulated ADC/EEPROM backends instead of real hardware")
		simFreqHz   = flag.Float64("sim-freq-hz", 10000, "synthetic input frequency to drive the edge counter with when --mock is set")
		metricsAddr = flag.String("metrics-addr", ":9110", "address to serve /metrics and the /monitor websocket on")
		logLevel    = flag.String("log-level", "info", "debug|info|warn|error")
	)
	flag.Parse()

	log := logging.New(logging.Options{Level: *logLevel})

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutting down")
		cancel()
	}()

	clock := timebase.New()

	freqQueue := ringqueue.New[edgecounter.FreqResult](int(cfg.QueueLength))
	frameQueue := ringqueue.New[protocol.Frame](frameQueueDepth)

	disciplinor := ppscal.New()
	counter := edgecounter.New(edgecounter.ClockFunc(clock.NowUs), freqQueue, cfg.MinIntervalFrac)

	mode := edgecounter.Gated
	if cfg.Mode == config.ModeReciprocal {
		mode = edgecounter.Reciprocal
	}

	var adcDriver adc.Driver
	var eepromReader eeprom.Reader
	if *mock {
		sim := adc.NewSimulated()
		adcDriver = sim
		eepromReader = eeprom.NewSimulated()
	} else {
		adcDriver = adc.NewSPI(nil, nil) // real SPI/GPIO wiring is board-specific and injected by the caller
		eepromReader = eeprom.NewUnioBitBang(nil, cfg.UnioBitrateBps, 0xA0)
	}
	if err := adcDriver.Init(adc.Config{
		Gain:          cfg.ADCGain,
		RateSPS:       cfg.ADCRateSPS,
		MainsReject:   cfg.ADCMainsReject,
		AverageWindow: cfg.AvgWindow,
	}); err != nil {
		log.WithError(err).Warn("adc init failed, continuing in degraded mode")
	}

	collector := diag.NewCollector()
	monitor := diag.NewMonitor()

	worker := pipeline.New(freqQueue, frameQueueSink{frameQueue, collector, monitor}, adcDriver, disciplinor, counter, collector, pipeline.Config{
		AdcGain:            cfg.ADCGain,
		AdcTimeoutMs:       cfg.ADCTimeoutMs,
		TauMs:              cfg.TauMs,
		Mode:               mode,
		DebugDeglitchStats: cfg.DebugDeglitchStats,
	}, log)
	go worker.Run(ctx)

	if *mock {
		go runSyntheticEdgeSource(ctx, counter, *simFreqHz)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.Handle("/monitor", monitor)
	srv := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("diagnostics server exited")
		}
	}()

	link := openLink(cfg, log)
	defer link.Close()
	link.SetBinary(cfg.BinaryFrames)
	dispatcher := transport.NewDispatcher(link, eepromReader, cfg.UnioGPIO, cfg.UnioBitrateBps, cfg.BinaryFrames)
	dispatcher.SetLogger(log)

	counter.StartWindow(mode, cfg.TauMs)

	wallClock := hostclock.New()
	wallClock.Initialize(int64(clock.NowUs()), float64(time.Now().Unix()))

	go runPPSTick(ctx, clock, disciplinor, counter, wallClock, log)

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	go func() {
		for {
			line, ok := link.ReadLine(ctx)
			if !ok {
				return
			}
			dispatcher.Handle(line)
		}
	}()

	go drainFrames(ctx, frameQueue, link, log)

	<-ctx.Done()
}

// runPPSTick fires once a second, matching the firmware's 1 Hz PPS
// calibration cadence: age out a stale PPS reference, push the current
// disciplining correction into the edge counter's timebase, and update
// the device-to-wall-clock correlation for logging.
func runPPSTick(ctx context.Context, clock *timebase.Clock, disciplinor *ppscal.Disciplinor, counter *edgecounter.Counter, wallClock *hostclock.Correlator, log *logrus.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := clock.NowUs()
			disciplinor.Tick(now)
			counter.UpdateTimebasePPM(disciplinor.CorrectionPPM())
			est := wallClock.Update(int64(now), float64(time.Now().Unix()))
			log.WithFields(logrus.Fields{
				"locked":       disciplinor.Locked(),
				"ppm_corr":     disciplinor.CorrectionPPM(),
				"rate_pps_est": est.RatePPS,
			}).Debug("pps tick")
		}
	}
}

// frameQueueSink adapts a *ringqueue.Queue[protocol.Frame] into
// pipeline.FrameSink while also feeding diagnostics.
type frameQueueSink struct {
	q         *ringqueue.Queue[protocol.Frame]
	collector *diag.Collector
	monitor   *diag.Monitor
}

func (s frameQueueSink) TryPush(f protocol.Frame) bool {
	dropped := s.q.TryPush(f)
	if dropped {
		s.collector.FramesDropped.Inc()
	}
	s.collector.FramesEmitted.Inc()
	s.collector.QueueDepth.Set(float64(s.q.Len()))
	if f.Flags&protocol.FlagPPSLocked != 0 {
		s.collector.PPSLocked.Set(1)
	} else {
		s.collector.PPSLocked.Set(0)
	}
	s.collector.PPMCorrection.Set(float64(f.PpmCorr))
	s.monitor.Publish(f)
	return true
}

func drainFrames(ctx context.Context, q *ringqueue.Queue[protocol.Frame], link *transport.Link, log *logrus.Logger) {
	for {
		f, ok := q.PopBlocking(ctx)
		if !ok {
			return
		}
		if !link.SendFrame(f, transport.DefaultWriteTimeout) {
			err := hosterrors.TransportBackpressureError(uint32(transport.DefaultWriteTimeout.Milliseconds()))
			log.WithError(err).Warn("frame dropped: link backpressure timeout")
		}
	}
}

func openLink(cfg *config.Config, log *logrus.Logger) *transport.Link {
	link, err := transport.Open(cfg.SerialPort, 115200)
	if err != nil {
		log.WithError(err).Warn("could not open serial port, falling back to stdio")
		return transport.NewLink(stdioRWC{}, cfg.BinaryFrames)
	}
	return link
}

// stdioRWC lets terpsd run against a terminal when no serial device is
// present, e.g. for local development.
type stdioRWC struct{}

func (stdioRWC) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioRWC) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioRWC) Close() error                { return nil }

func runSyntheticEdgeSource(ctx context.Context, counter *edgecounter.Counter, freqHz float64) {
	if freqHz <= 0 {
		return
	}
	period := time.Duration(float64(time.Second) / freqHz)
	if period <= 0 {
		period = time.Microsecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counter.OnEdge(uint64(time.Since(start).Microseconds()))
		}
	}
}
