package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	RoleServer = "server"
	RoleClient = "client"
)

var (
	registerOnce sync.Once

	sessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "frameecho",
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently being served or driven.",
		},
		[]string{"role"},
	)
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frameecho",
			Subsystem: "session",
			Name:      "started_total",
			Help:      "Sessions started.",
		},
		[]string{"role"},
	)
	framesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frameecho",
			Subsystem: "frame",
			Name:      "reads_total",
			Help:      "Frame reads by outcome.",
		},
		[]string{"role", "outcome"},
	)
	bytesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frameecho",
			Subsystem: "frame",
			Name:      "written_bytes_total",
			Help:      "Bytes written to peers (echoes and probes).",
		},
		[]string{"role"},
	)
	ioErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frameecho",
			Subsystem: "io",
			Name:      "errors_total",
			Help:      "Failed I/O operations by operation and error kind.",
		},
		[]string{"role", "op", "kind"},
	)
	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frameecho",
			Subsystem: "client",
			Name:      "connect_attempts_total",
			Help:      "Connect attempts by result.",
		},
		[]string{"result"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frameecho",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"component", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "frameecho",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"component", "method", "route", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			sessionsActive,
			sessionsTotal,
			framesRead,
			bytesWritten,
			ioErrors,
			connectAttempts,
			httpRequests,
			httpDuration,
		)
	})
}

// SessionStarted bumps the active gauge and returns the matching decrement.
func SessionStarted(role string) func() {
	RegisterMetrics()
	sessionsTotal.WithLabelValues(role).Inc()
	g := sessionsActive.WithLabelValues(role)
	g.Inc()
	return g.Dec
}

func RecordFrameRead(role, outcome string) {
	RegisterMetrics()
	framesRead.WithLabelValues(role, outcome).Inc()
}

func RecordBytesWritten(role string, n int) {
	if n <= 0 {
		return
	}
	RegisterMetrics()
	bytesWritten.WithLabelValues(role).Add(float64(n))
}

func RecordIOError(role, op, kind string) {
	RegisterMetrics()
	ioErrors.WithLabelValues(role, op, kind).Inc()
}

func RecordConnectAttempt(result string) {
	RegisterMetrics()
	connectAttempts.WithLabelValues(result).Inc()
}

func RecordHTTPRequest(component, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(component, method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(component, method, route, statusLabel).Observe(duration.Seconds())
}
