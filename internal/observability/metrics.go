package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatectl",
			Subsystem: "gateway",
			Name:      "connect_attempts_total",
			Help:      "Connect attempts by terminal outcome.",
		},
		[]string{"outcome"},
	)
	connectDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gatectl",
			Subsystem: "gateway",
			Name:      "connect_duration_seconds",
			Help:      "Time from dial start to authenticated session.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	sessionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gatectl",
			Subsystem: "gateway",
			Name:      "session_state",
			Help:      "Session state: 0 disconnected, 1 connecting, 2 socket open, 3 authenticated.",
		},
	)
	disconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatectl",
			Subsystem: "gateway",
			Name:      "disconnects_total",
			Help:      "Socket losses by the session state they interrupted.",
		},
		[]string{"prior_state"},
	)
	reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatectl",
			Subsystem: "gateway",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after authenticated-session loss.",
		},
	)
	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatectl",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "RPC requests by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gatectl",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "RPC round-trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	eventsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatectl",
			Subsystem: "events",
			Name:      "dispatched_total",
			Help:      "Notifications dispatched by name.",
		},
		[]string{"event"},
	)
	anomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatectl",
			Subsystem: "protocol",
			Name:      "anomalies_total",
			Help:      "Dropped frames and other protocol anomalies.",
		},
		[]string{"kind"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatectl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"component", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gatectl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"component", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connectAttempts, connectDuration, sessionState, disconnects, reconnects,
			rpcRequests, rpcDuration, eventsDispatched, anomalies,
			httpRequests, httpDuration,
		)
	})
}

func RecordConnect(outcome string, duration time.Duration) {
	RegisterMetrics()
	connectAttempts.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		connectDuration.Observe(duration.Seconds())
	}
}

func SetSessionState(state int) {
	RegisterMetrics()
	sessionState.Set(float64(state))
}

func RecordDisconnect(priorState string) {
	RegisterMetrics()
	disconnects.WithLabelValues(priorState).Inc()
}

func RecordReconnectScheduled() {
	RegisterMetrics()
	reconnects.Inc()
}

func RecordCall(method, outcome string, duration time.Duration) {
	RegisterMetrics()
	rpcRequests.WithLabelValues(method, outcome).Inc()
	switch outcome {
	case "ok", "error":
		rpcDuration.WithLabelValues(method).Observe(duration.Seconds())
	}
}

func RecordEvent(event string) {
	RegisterMetrics()
	eventsDispatched.WithLabelValues(event).Inc()
}

func RecordAnomaly(kind string) {
	RegisterMetrics()
	anomalies.WithLabelValues(kind).Inc()
}

func RecordHTTPRequest(component, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(component, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(component, method, path, statusLabel).Observe(duration.Seconds())
}
