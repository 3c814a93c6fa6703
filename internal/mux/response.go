package mux

import (
	"context"

	"github.com/aegis-sign/connect/internal/topic"
	"github.com/aegis-sign/connect/pkg/apierrors"
)

// ErrMissingID 表示发布的响应缺少请求 id，属于调用方误用。
var ErrMissingID = apierrors.New(apierrors.CodeMissingID, "response id is required")

// ErrNoVerifier 表示收到签名令牌但没有配置校验器。
var ErrNoVerifier = apierrors.New(apierrors.CodeInvalidToken, "signed token received but no verifier configured")

// Response 是任意传输（轮询结果、回调、推送回执）送达的一条响应。
type Response struct {
	ID      string
	Payload topic.Payload
	// Error 非空时无论 Payload 形态如何都按远端错误处理。
	Error string
}

// Claims 是校验通过的签名令牌载荷。
type Claims map[string]any

// String 返回字符串类型的声明，缺失或类型不符时返回空串。
func (c Claims) String(key string) string {
	if c == nil {
		return ""
	}
	v, _ := c[key].(string)
	return v
}

// Verifier 校验签名令牌并返回声明；具体的 JWT 实现由外部注入。
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// VerifierFunc 让普通函数满足 Verifier。
type VerifierFunc func(ctx context.Context, token string) (Claims, error)

// Verify 实现 Verifier。
func (f VerifierFunc) Verify(ctx context.Context, token string) (Claims, error) {
	return f(ctx, token)
}

// Outcome 是成功响应解析后的结果。
type Outcome struct {
	Payload topic.Payload
	// Claims 仅在 Payload 为签名令牌且校验通过时非空。
	Claims Claims
}

// Value 返回调用方关心的文本值：签名令牌返回令牌本身，普通值返回其字符串形式。
func (o Outcome) Value() string {
	return o.Payload.String()
}

func (m *Multiplexer) parse(ctx context.Context, resp Response) (Outcome, error) {
	if resp.Error != "" {
		return Outcome{}, apierrors.Remote(resp.Error)
	}
	if resp.Payload.Kind != topic.KindSignedToken {
		return Outcome{Payload: resp.Payload}, nil
	}
	if m.verifier == nil {
		return Outcome{}, ErrNoVerifier
	}
	claims, err := m.verifier.Verify(ctx, resp.Payload.Token)
	if err != nil {
		if _, ok := apierrors.FromError(err); ok {
			return Outcome{}, err
		}
		return Outcome{}, apierrors.New(apierrors.CodeInvalidToken, "verify signed token: "+err.Error())
	}
	return Outcome{Payload: resp.Payload, Claims: claims}, nil
}
