package topic

import (
	"encoding/json"
	"strings"
)

// Kind 区分结算值的形态，在传输边界一次性判定。
type Kind string

const (
	// KindRaw 表示普通 JSON 值（地址、交易哈希等）。
	KindRaw Kind = "raw"
	// KindSignedToken 表示紧凑格式的签名令牌，需要交给外部校验器。
	KindSignedToken Kind = "signedToken"
)

// Payload 是 Topic 结算时携带的带标签结果。
type Payload struct {
	Kind  Kind
	Raw   json.RawMessage
	Token string
}

// String 返回原始值的文本形式：JSON 字符串去引号，其余返回原始 JSON。
func (p Payload) String() string {
	if p.Kind == KindSignedToken {
		return p.Token
	}
	var s string
	if err := json.Unmarshal(p.Raw, &s); err == nil {
		return s
	}
	return string(p.Raw)
}

// PayloadFromJSON 将 relay 返回的 JSON 值分类。
func PayloadFromJSON(raw json.RawMessage) Payload {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && looksLikeSignedToken(s) {
		return Payload{Kind: KindSignedToken, Token: s}
	}
	return Payload{Kind: KindRaw, Raw: append(json.RawMessage(nil), raw...)}
}

// PayloadFromString 将 URL fragment 等纯文本值分类。
func PayloadFromString(value string) Payload {
	if looksLikeSignedToken(value) {
		return Payload{Kind: KindSignedToken, Token: value}
	}
	raw, _ := json.Marshal(value)
	return Payload{Kind: KindRaw, Raw: raw}
}

// looksLikeSignedToken 仅做结构判定：三段非空 base64url，以点分隔。
func looksLikeSignedToken(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, r := range part {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			default:
				return false
			}
		}
	}
	return true
}
