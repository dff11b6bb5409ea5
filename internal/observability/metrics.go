package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects chat engine metrics. All methods are safe on a nil
// receiver so components can run without instrumentation.
type Metrics struct {
	reg *prometheus.Registry

	// Connections tracks open WebSocket connections.
	Connections prometheus.Gauge

	// Messages counts persisted and delivered chat messages.
	// Labels: kind (public|private|system)
	Messages *prometheus.CounterVec

	// MessageErrors counts rejected or failed chat messages.
	// Labels: reason (error frame code)
	MessageErrors *prometheus.CounterVec

	// DMStarted counts first messages of new private conversations.
	DMStarted prometheus.Counter

	// Signals counts ephemeral signals fanned out.
	// Labels: kind (typing|spark)
	Signals *prometheus.CounterVec

	// SendDropped counts events dropped because a connection's send queue
	// was full or closed.
	SendDropped prometheus.Counter

	// StoreDuration measures history store calls.
	// Labels: op
	StoreDuration *prometheus.HistogramVec

	// AuthFailures counts rejected connection handshakes.
	AuthFailures prometheus.Counter
}

// NewMetrics registers the metrics on a fresh registry together with the Go
// and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "talk_connections",
			Help: "Number of open chat connections",
		}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talk_messages_total",
			Help: "Total number of chat messages stored and delivered by kind",
		}, []string{"kind"}),
		MessageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talk_message_errors_total",
			Help: "Total number of rejected or failed chat events by reason",
		}, []string{"reason"}),
		DMStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "talk_dm_started_total",
			Help: "Total number of private conversations started",
		}),
		Signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talk_signals_total",
			Help: "Total number of ephemeral signals fanned out by kind",
		}, []string{"kind"}),
		SendDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "talk_send_dropped_total",
			Help: "Total number of outbound events dropped on full or closed connections",
		}),
		StoreDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "talk_store_duration_seconds",
			Help:    "Duration of history store operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"op"}),
		AuthFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "talk_auth_failures_total",
			Help: "Total number of rejected connection handshakes",
		}),
	}
}

// RegisterPresence exposes the live online count.
func (m *Metrics) RegisterPresence(online func() int) {
	if m == nil {
		return
	}
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "talk_participants_online",
		Help: "Number of participants with at least one open connection",
	}, func() float64 { return float64(online()) })
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

func (m *Metrics) MessageStored(kind string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(kind).Inc()
}

func (m *Metrics) MessageFailed(reason string) {
	if m == nil {
		return
	}
	m.MessageErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) ConversationStarted() {
	if m == nil {
		return
	}
	m.DMStarted.Inc()
}

func (m *Metrics) Signal(kind string) {
	if m == nil {
		return
	}
	m.Signals.WithLabelValues(kind).Inc()
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.SendDropped.Inc()
}

func (m *Metrics) AuthFailed() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}

// ObserveStore records the duration of a store call started at start.
func (m *Metrics) ObserveStore(op string, start time.Time) {
	if m == nil {
		return
	}
	m.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
