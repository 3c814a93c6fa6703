package push

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// DebugHandler 返回 /debug/push 所需的 handler。
func (d *Dispatcher) DebugHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(d.snapshot())
	})
}

type debugSnapshot struct {
	Sender     string    `json:"sender"`
	QueueDepth int       `json:"queueDepth"`
	InFlight   int       `json:"inFlight"`
	Workers    int       `json:"workers"`
	RateLimit  float64   `json:"rateLimit"`
	Topics     []string  `json:"topics"`
	Timestamp  time.Time `json:"timestamp"`
}

func (d *Dispatcher) snapshot() debugSnapshot {
	snap := debugSnapshot{Sender: d.sender.Name(), Workers: d.cfg.Workers, Timestamp: time.Now()}
	d.mu.Lock()
	snap.InFlight = len(d.inflight)
	snap.Topics = make([]string, 0, len(d.inflight))
	for id := range d.inflight {
		snap.Topics = append(snap.Topics, id)
	}
	d.mu.Unlock()
	sort.Strings(snap.Topics)
	snap.QueueDepth = len(d.queue)
	if limiter := d.limiter.Load(); limiter != nil {
		snap.RateLimit = float64(limiter.Limit())
	}
	return snap
}
