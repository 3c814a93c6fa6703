package mux

import "sync"

// SessionState 是会话字段的只读快照。
type SessionState struct {
	Address      string
	DID          string
	PushToken    string
	PublicEncKey string
}

// Session 保存从已校验响应中观察到的身份与会话字段。
// 只有 Multiplexer 的成功路径会写入。
type Session struct {
	mu    sync.RWMutex
	state SessionState
}

// Snapshot 返回当前会话状态。
func (s *Session) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Reset 清空会话（登出）。
func (s *Session) Reset() {
	s.mu.Lock()
	s.state = SessionState{}
	s.mu.Unlock()
}

func (s *Session) merge(claims Claims) {
	if len(claims) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v := firstNonEmpty(claims.String("address"), claims.String("nad")); v != "" {
		s.state.Address = v
	}
	if v := firstNonEmpty(claims.String("did"), claims.String("iss")); v != "" {
		s.state.DID = v
	}
	if v := claims.String("pushToken"); v != "" {
		s.state.PushToken = v
	}
	if v := claims.String("publicEncKey"); v != "" {
		s.state.PublicEncKey = v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
