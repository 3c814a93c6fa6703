package topic

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/aegis-sign/connect/pkg/apierrors"
)

// NavigationSource 抽象浏览器的 hashchange 事件；非浏览器环境可用
// deep link / URI scheme 事件源实现同一契约。
type NavigationSource interface {
	// Location 返回当前完整 URL。
	Location() string
	// Subscribe 注册导航事件监听，返回注销函数。
	Subscribe(fn func(location string)) (unsubscribe func())
	// ClearFragment 清空当前 URL 的 fragment。
	ClearFragment()
}

// watchFragment 为 Topic 安装监听：error 或 name 出现时注销、清空 fragment 并结算；
// 其它事件忽略，因为移动端所有 Topic 共享同一通道。
func (f *Factory) watchFragment(t *Topic) {
	unsubscribe := f.nav.Subscribe(func(location string) {
		values, ok := fragmentValues(location)
		if !ok {
			return
		}
		switch {
		case values.Get("error") != "":
			f.nav.ClearFragment()
			if t.Cancelled() {
				t.reject(ErrCancelled)
				return
			}
			t.reject(apierrors.Remote(values.Get("error")))
		case values.Has(t.Name):
			f.nav.ClearFragment()
			if t.Cancelled() {
				t.reject(ErrCancelled)
				return
			}
			t.resolve(PayloadFromString(values.Get(t.Name)))
		default:
			f.logger.Debug("fragment ignored", slog.String("topic", t.ID), slog.String("name", t.Name))
		}
	})
	t.addTeardown(unsubscribe)
}

// fragmentValues 用标准 query-string 解析器解析 fragment，畸形片段尽量保留可识别的键。
func fragmentValues(location string) (url.Values, bool) {
	i := strings.IndexByte(location, '#')
	if i < 0 || i == len(location)-1 {
		return nil, false
	}
	values, _ := url.ParseQuery(location[i+1:])
	return values, len(values) > 0
}
