package topic

import "github.com/prometheus/client_golang/prometheus"

// Metrics 记录 Topic 生命周期与 relay 访问情况。
type Metrics struct {
	created        *prometheus.CounterVec
	settled        *prometheus.CounterVec
	pending        prometheus.Gauge
	relayReads     prometheus.Counter
	cleanupFailure prometheus.Counter
}

// NewMetrics 构造 Metrics，reg 为空则注册到默认注册器。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connect",
			Subsystem: "topic",
			Name:      "created_total",
			Help:      "Topics created per delivery strategy",
		}, []string{"strategy"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connect",
			Subsystem: "topic",
			Name:      "settled_total",
			Help:      "Topics settled per delivery strategy and outcome",
		}, []string{"strategy", "outcome"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "connect",
			Subsystem: "topic",
			Name:      "pending",
			Help:      "Topics waiting for an out-of-band result",
		}),
		relayReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "connect",
			Subsystem: "topic",
			Name:      "relay_reads_total",
			Help:      "Relay GET requests issued by polling",
		}),
		cleanupFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "connect",
			Subsystem: "topic",
			Name:      "relay_cleanup_failures_total",
			Help:      "Best-effort relay DELETE requests that failed",
		}),
	}
	reg.MustRegister(m.created, m.settled, m.pending, m.relayReads, m.cleanupFailure)
	return m
}

func (m *Metrics) incCreated(strategy Strategy) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(string(strategy)).Inc()
	m.pending.Inc()
}

func (m *Metrics) observeSettled(strategy Strategy, outcome string) {
	if m == nil {
		return
	}
	m.settled.WithLabelValues(string(strategy), outcome).Inc()
	m.pending.Dec()
}

func (m *Metrics) incRelayRead() {
	if m == nil {
		return
	}
	m.relayReads.Inc()
}

func (m *Metrics) incCleanupFailure() {
	if m == nil {
		return
	}
	m.cleanupFailure.Inc()
}
