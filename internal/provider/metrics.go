package provider

import "github.com/prometheus/client_golang/prometheus"

// Metrics 记录 RPC 调用结果。
type Metrics struct {
	calls      *prometheus.CounterVec
	batchItems prometheus.Histogram
}

// NewMetrics 注册指标；reg 为空时使用默认注册表。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connect",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "JSON-RPC calls handled, by route and outcome",
		}, []string{"route", "outcome"}),
		batchItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "connect",
			Subsystem: "provider",
			Name:      "batch_items",
			Help:      "Number of envelopes per batch request",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
	}
	reg.MustRegister(m.calls, m.batchItems)
	return m
}

func (m *Metrics) observeCall(route string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(labelOrUnknown(route), outcome).Inc()
}

func (m *Metrics) observeBatch(n int) {
	if m == nil {
		return
	}
	m.batchItems.Observe(float64(n))
}

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
