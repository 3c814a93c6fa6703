package addresscache

import "github.com/prometheus/client_golang/prometheus"

// Metrics 记录地址缓存命中与合并等待。
type Metrics struct {
	lookups       *prometheus.CounterVec
	fetchFailures prometheus.Counter
	waiters       prometheus.Gauge
}

// NewMetrics 构造指标集合，reg 为空时默认使用全局注册器。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connect",
			Subsystem: "address_cache",
			Name:      "lookups_total",
			Help:      "Address cache lookups by result",
		}, []string{"result"}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "connect",
			Subsystem: "address_cache",
			Name:      "fetch_failures_total",
			Help:      "Failed address requests",
		}),
		waiters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "connect",
			Subsystem: "address_cache",
			Name:      "singleflight_waiters",
			Help:      "Callers waiting on the in-flight address request",
		}),
	}
	reg.MustRegister(m.lookups, m.fetchFailures, m.waiters)
	return m
}

func (m *Metrics) incLookup(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) incFetchFailure() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
}

func (m *Metrics) addWaiter() func() {
	if m == nil {
		return func() {}
	}
	m.waiters.Inc()
	return m.waiters.Dec
}
