package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agentlink"

// Metrics holds the connection layer collectors.
type Metrics struct {
	connectionState   prometheus.Gauge
	reconnectAttempts prometheus.Counter
	envelopesReceived *prometheus.CounterVec
	envelopesDropped  *prometheus.CounterVec
	requestsTotal     *prometheus.CounterVec
	requestLatency    prometheus.Histogram
	sendFailures      prometheus.Counter
	eventQueueDepth   prometheus.Gauge
	eventQueuePeak    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// Returns nil if reg is nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)",
		}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of scheduled reconnection attempts",
		}),
		envelopesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_received_total",
			Help:      "Total inbound envelopes by kind",
		}, []string{"kind"}),
		envelopesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_dropped_total",
			Help:      "Total inbound frames dropped by reason",
		}, []string{"reason"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total correlated data requests by outcome",
		}, []string{"outcome"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "Data request round-trip latency",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Total outbound envelopes that failed after retries",
		}),
		eventQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_queue_depth",
			Help:      "Events waiting for dispatch",
		}),
		eventQueuePeak: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_queue_high_water",
			Help:      "Largest dispatcher backlog seen",
		}),
	}

	collectors := []prometheus.Collector{
		m.connectionState,
		m.reconnectAttempts,
		m.envelopesReceived,
		m.envelopesDropped,
		m.requestsTotal,
		m.requestLatency,
		m.sendFailures,
		m.eventQueueDepth,
		m.eventQueuePeak,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// SetConnectionState records the numeric connection state.
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(state))
}

// ReconnectAttempt counts one scheduled reconnect.
func (m *Metrics) ReconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

// EnvelopeReceived counts one decoded inbound envelope.
func (m *Metrics) EnvelopeReceived(kind string) {
	if m == nil {
		return
	}
	m.envelopesReceived.WithLabelValues(kind).Inc()
}

// EnvelopeDropped counts one inbound frame that was not delivered.
func (m *Metrics) EnvelopeDropped(reason string) {
	if m == nil {
		return
	}
	m.envelopesDropped.WithLabelValues(reason).Inc()
}

// RequestResolved records a correlated request outcome and its latency.
func (m *Metrics) RequestResolved(outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestLatency.Observe(latency.Seconds())
}

// SendFailed counts one outbound envelope given up on.
func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

// SetEventQueue records the dispatcher backlog and its high water mark.
func (m *Metrics) SetEventQueue(depth, highWater int) {
	if m == nil {
		return
	}
	m.eventQueueDepth.Set(float64(depth))
	m.eventQueuePeak.Set(float64(highWater))
}
