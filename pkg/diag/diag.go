// Package diag exposes bench instrumentation for the measurement
// pipeline: Prometheus counters/gauges over HTTP, and an optional
// websocket endpoint that mirrors every emitted Frame for a live
// monitor. Neither is on the measurement hot path.
package diag

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"terpsd/pkg/protocol"
)

// Collector holds the process's Prometheus metrics.
type Collector struct {
	GlitchCount    prometheus.Counter
	WindowTimeouts prometheus.Counter
	FramesEmitted  prometheus.Counter
	FramesDropped  prometheus.Counter
	QueueDepth     prometheus.Gauge
	PPSLocked      prometheus.Gauge
	PPMCorrection  prometheus.Gauge

	registry *prometheus.Registry
}

// NewCollector builds and registers a fresh set of metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		GlitchCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terpsd_glitch_total",
			Help: "Deglitched (rejected) edges on the frequency input.",
		}),
		WindowTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terpsd_window_timeout_total",
			Help: "Gated measurement windows that ended on the timeout path rather than a full pulse count.",
		}),
		FramesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terpsd_frames_emitted_total",
			Help: "Frames handed to the transport for sending.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terpsd_frames_dropped_total",
			Help: "Frames dropped by queue overflow before transmission.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terpsd_frame_queue_depth",
			Help: "Current occupancy of the outbound frame queue.",
		}),
		PPSLocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terpsd_pps_locked",
			Help: "1 if the PPS reference is currently locked, else 0.",
		}),
		PPMCorrection: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terpsd_ppm_correction",
			Help: "Current PPS-derived timebase correction, in parts per million.",
		}),
	}
	reg.MustRegister(c.GlitchCount, c.WindowTimeouts, c.FramesEmitted, c.FramesDropped, c.QueueDepth, c.PPSLocked, c.PPMCorrection)
	return c
}

// Handler returns the HTTP handler serving /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Monitor fans out every emitted Frame to connected websocket clients,
// for a live bench-monitoring page.
type Monitor struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewMonitor returns an empty Monitor.
func NewMonitor() *Monitor {
	return &Monitor{clients: make(map[*websocket.Conn]struct{})}
}

// ServeHTTP upgrades the connection and registers it as a subscriber
// until it disconnects.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("diag: websocket upgrade failed: %v", err)
		return
	}
	m.mu.Lock()
	m.clients[conn] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.clients, conn)
		m.mu.Unlock()
		conn.Close()
	}()

	// Drain and discard anything the client sends; this is a
	// publish-only feed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish sends f as JSON to every connected client, dropping any client
// whose write fails.
func (m *Monitor) Publish(f protocol.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.clients) == 0 {
		return
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	for conn := range m.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(m.clients, conn)
		}
	}
}
