package push

import "github.com/prometheus/client_golang/prometheus"

// Metrics 记录推送队列与发送结果。
type Metrics struct {
	queueDepth prometheus.Gauge
	sent       *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewMetrics 构造 Metrics，reg 为空则注册到默认注册器。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "push_queue_depth",
			Help: "Number of push notifications queued or in flight",
		}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_sent_total",
			Help: "Push notifications handed to a sender, by outcome",
		}, []string{"sender", "outcome"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_rejected_total",
			Help: "Push notifications refused before queueing",
		}, []string{"reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "push_send_latency_ms",
			Help:    "Latency of push sends in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"sender"}),
	}
	reg.MustRegister(m.queueDepth, m.sent, m.rejected, m.latency)
	return m
}

func (m *Metrics) incQueueDepth() {
	if m == nil {
		return
	}
	m.queueDepth.Inc()
}

func (m *Metrics) decQueueDepth() {
	if m == nil {
		return
	}
	m.queueDepth.Dec()
}

func (m *Metrics) observeSent(sender string, err error, durMs float64) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.sent.WithLabelValues(labelOrUnknown(sender), outcome).Inc()
	m.latency.WithLabelValues(labelOrUnknown(sender)).Observe(durMs)
}

func (m *Metrics) incRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(labelOrUnknown(reason)).Inc()
}

func labelOrUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
