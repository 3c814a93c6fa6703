package topic

import (
	"net/http"
	"sync"
)

// Location 是内存中的导航事件源，模拟 window.location 与 hashchange。
type Location struct {
	mu        sync.Mutex
	href      string
	seq       uint64
	listeners map[uint64]func(string)
}

// NewLocation 以初始 URL 构造 Location。
func NewLocation(href string) *Location {
	return &Location{href: stripFragment(href), listeners: make(map[uint64]func(string))}
}

// Location 实现 NavigationSource。
func (l *Location) Location() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.href
}

// Subscribe 实现 NavigationSource。
func (l *Location) Subscribe(fn func(string)) func() {
	l.mu.Lock()
	l.seq++
	id := l.seq
	l.listeners[id] = fn
	l.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.listeners, id)
			l.mu.Unlock()
		})
	}
}

// ClearFragment 实现 NavigationSource，清空 fragment 不触发事件。
func (l *Location) ClearFragment() {
	l.mu.Lock()
	l.href = stripFragment(l.href)
	l.mu.Unlock()
}

// SetFragment 替换 fragment 并通知所有监听者。
func (l *Location) SetFragment(fragment string) {
	l.mu.Lock()
	l.href = stripFragment(l.href) + "#" + fragment
	l.mu.Unlock()
	l.dispatch()
}

// Navigate 整体替换 URL 并通知所有监听者。
func (l *Location) Navigate(href string) {
	l.mu.Lock()
	l.href = href
	l.mu.Unlock()
	l.dispatch()
}

// Listeners 返回当前已安装的监听数量。
func (l *Location) Listeners() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.listeners)
}

func (l *Location) dispatch() {
	l.mu.Lock()
	href := l.href
	fns := make([]func(string), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(href)
	}
}

// NewFragmentHandler 把 deep link 回调（GET /callback?access_token=...）
// 转换为 fragment 变化，供桌面外壳或测试中的钱包回跳使用。
func NewFragmentHandler(loc *Location) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "GET required", http.StatusMethodNotAllowed)
			return
		}
		if r.URL.RawQuery == "" {
			http.Error(w, "empty callback", http.StatusBadRequest)
			return
		}
		loc.SetFragment(r.URL.RawQuery)
		w.WriteHeader(http.StatusNoContent)
	})
}
