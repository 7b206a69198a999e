package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. Methods are safe on a nil receiver
// so components can run without instrumentation.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Playground metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	ConsoleRecords *prometheus.CounterVec
	BridgeDropped  prometheus.Counter
	FrameReloads   prometheus.Counter
	FrameErrors    *prometheus.CounterVec

	// Storage metrics
	StorageOps *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	Uptime    prometheus.GaugeFunc
	startTime time.Time
}

// NewMetrics registers the collectors on reg. Passing nil uses the default
// Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livecode_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livecode_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
	m.ResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livecode_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path"},
	)

	m.SessionsActive = factory.NewGauge(prometheus.GaugeOpts{
		Name: "livecode_sessions_active",
		Help: "Number of open playground sessions",
	})
	m.SessionsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "livecode_sessions_total",
		Help: "Total number of playground sessions opened",
	})
	m.ConsoleRecords = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livecode_console_records_total",
			Help: "Console records appended, by level",
		},
		[]string{"level"},
	)
	m.BridgeDropped = factory.NewCounter(prometheus.CounterOpts{
		Name: "livecode_bridge_dropped_total",
		Help: "Host messages dropped because they were not console events",
	})
	m.FrameReloads = factory.NewCounter(prometheus.CounterOpts{
		Name: "livecode_frame_reloads_total",
		Help: "Isolated frames created for a new document",
	})
	m.FrameErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livecode_frame_errors_total",
			Help: "Uncaught errors and unhandled rejections inside frames",
		},
		[]string{"kind"},
	)
	m.StorageOps = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livecode_storage_operations_total",
			Help: "Persistence operations, by store, operation and status",
		},
		[]string{"store", "op", "status"},
	)
	m.WSConnections = factory.NewGauge(prometheus.GaugeOpts{
		Name: "livecode_ws_connections",
		Help: "Open session streams",
	})
	m.WSMessages = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livecode_ws_messages_total",
			Help: "Stream messages, by direction",
		},
		[]string{"direction"},
	)
	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "livecode_uptime_seconds",
			Help: "Seconds since the service started",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
	m.SessionsTotal.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// ConsoleRecord counts an appended console record.
func (m *Metrics) ConsoleRecord(level string) {
	if m == nil {
		return
	}
	m.ConsoleRecords.WithLabelValues(level).Inc()
}

// Dropped counts a host message the bridge rejected.
func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.BridgeDropped.Inc()
}

func (m *Metrics) FrameReloaded() {
	if m == nil {
		return
	}
	m.FrameReloads.Inc()
}

// FrameError counts an uncaught "error" or "rejection" inside a frame.
func (m *Metrics) FrameError(kind string) {
	if m == nil {
		return
	}
	m.FrameErrors.WithLabelValues(kind).Inc()
}

// StorageOp records the outcome of a persistence call.
func (m *Metrics) StorageOp(store, op string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StorageOps.WithLabelValues(store, op, status).Inc()
}

func (m *Metrics) WSConnected() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

func (m *Metrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// WSMessage counts a stream message; direction is "in" or "out".
func (m *Metrics) WSMessage(direction string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction).Inc()
}
