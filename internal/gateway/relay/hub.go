package relay

import (
	"encoding/json"
	"sync"
)

// hub 把新写入的消息推送给 websocket 订阅者。
type hub struct {
	mu       sync.Mutex
	watchers map[string]map[chan json.RawMessage]struct{}
}

func newHub() *hub {
	return &hub{watchers: make(map[string]map[chan json.RawMessage]struct{})}
}

func (h *hub) watch(id string) (<-chan json.RawMessage, func()) {
	ch := make(chan json.RawMessage, 1)
	h.mu.Lock()
	set := h.watchers[id]
	if set == nil {
		set = make(map[chan json.RawMessage]struct{})
		h.watchers[id] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers[id], ch)
			if len(h.watchers[id]) == 0 {
				delete(h.watchers, id)
			}
			h.mu.Unlock()
		})
	}
}

// publish 非阻塞投递；每个邮箱只写一次，缓冲为 1 足够。
func (h *hub) publish(id string, msg json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers[id] {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.watchers {
		n += len(set)
	}
	return n
}
