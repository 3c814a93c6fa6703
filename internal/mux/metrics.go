package mux

import "github.com/prometheus/client_golang/prometheus"

// Metrics 记录多路复用器的发布情况。
type Metrics struct {
	published *prometheus.CounterVec
	unclaimed prometheus.Counter
	waiting   prometheus.Gauge
}

// NewMetrics 注册指标；reg 为空时使用默认注册表。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connect",
			Subsystem: "mux",
			Name:      "published_total",
			Help:      "Responses published, by outcome",
		}, []string{"outcome"}),
		unclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "connect",
			Subsystem: "mux",
			Name:      "unclaimed_total",
			Help:      "Responses published with no future or listener registered",
		}),
		waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "connect",
			Subsystem: "mux",
			Name:      "waiting_futures",
			Help:      "One-shot futures waiting for a response",
		}),
	}
	reg.MustRegister(m.published, m.unclaimed, m.waiting)
	return m
}

func (m *Metrics) observePublished(err error) {
	if m == nil {
		return
	}
	outcome := "resolved"
	if err != nil {
		outcome = "rejected"
	}
	m.published.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incUnclaimed() {
	if m == nil {
		return
	}
	m.unclaimed.Inc()
}

func (m *Metrics) addWaiting(delta float64) {
	if m == nil {
		return
	}
	m.waiting.Add(delta)
}
