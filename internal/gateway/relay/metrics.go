package relay

import "github.com/prometheus/client_golang/prometheus"

// Metrics 记录邮箱服务指标。
type Metrics struct {
	requests *prometheus.CounterVec
	expired  prometheus.Counter
	watchers prometheus.Gauge
}

// NewMetrics 构造 Metrics，reg 为空则注册到默认注册器。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Mailbox operations by operation and result code",
		}, []string{"op", "code"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_expired_total",
			Help: "Mailboxes removed after their TTL",
		}),
		watchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_stream_watchers",
			Help: "Open mailbox stream subscriptions",
		}),
	}
	reg.MustRegister(m.requests, m.expired, m.watchers)
	return m
}

func (m *Metrics) observe(op string, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "OK"
	}
	m.requests.WithLabelValues(op, code).Inc()
}

func (m *Metrics) addExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

func (m *Metrics) addWatcher(delta float64) {
	if m == nil {
		return
	}
	m.watchers.Add(delta)
}
