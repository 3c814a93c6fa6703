package connect

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aegis-sign/connect/internal/gateway/push"
	"github.com/aegis-sign/connect/internal/mux"
	"github.com/aegis-sign/connect/internal/topic"
	"github.com/aegis-sign/connect/pkg/apierrors"
)

// 签名端写回结果时使用的通道名。
const (
	ChannelAddress   = "access_token"
	ChannelTx        = "tx"
	ChannelTypedData = "typedDataSig"
	ChannelPersonal  = "personalSig"
)

// URIHandler 把请求 URI 交给用户：桌面端展示二维码，移动端跳转深链接。
type URIHandler interface {
	Show(ctx context.Context, requestURI string) error
}

// URIHandlerFunc 让普通函数满足 URIHandler。
type URIHandlerFunc func(ctx context.Context, requestURI string) error

// Show 实现 URIHandler。
func (f URIHandlerFunc) Show(ctx context.Context, requestURI string) error {
	return f(ctx, requestURI)
}

func logHandler(logger *slog.Logger) URIHandler {
	return URIHandlerFunc(func(_ context.Context, requestURI string) error {
		logger.Info("open request uri", slog.String("uri", requestURI))
		return nil
	})
}

type result struct {
	outcome mux.Outcome
	err     error
}

// request 创建 Topic、展示请求并等待结果。
// Topic 结果经复用器发布，因此回调端点先到的同 id 响应同样生效，先到者胜。
func (c *Client) request(ctx context.Context, name string, build func(callbackURL string) (string, error)) (mux.Outcome, error) {
	tp, err := c.factory.CreateTopic(ctx, name)
	if err != nil {
		return mux.Outcome{}, err
	}
	defer tp.Cancel()

	results := make(chan result, 1)
	deliver := func(o mux.Outcome, err error) {
		select {
		case results <- result{outcome: o, err: err}:
		default:
		}
	}
	unlisten := c.mux.Listen(tp.ID, deliver)
	defer unlisten()
	go c.forward(tp, deliver)

	requestURI, err := build(tp.URL)
	if err != nil {
		return mux.Outcome{}, err
	}
	if err := c.present(ctx, tp.ID, requestURI); err != nil {
		return mux.Outcome{}, err
	}

	select {
	case r := <-results:
		return r.outcome, r.err
	case <-ctx.Done():
		return mux.Outcome{}, topic.ErrCancelled
	}
}

// forward 把 Topic 的结算结果发布到复用器；传输类与取消类错误直接交给等待方。
func (c *Client) forward(tp *topic.Topic, deliver func(mux.Outcome, error)) {
	<-tp.Done()
	payload, err, _ := tp.Result()
	if err != nil && !apierrors.HasCode(err, apierrors.CodeRemote) {
		deliver(mux.Outcome{}, err)
		return
	}
	resp := mux.Response{ID: tp.ID, Payload: payload}
	if err != nil {
		resp.Error = err.Error()
	}
	if err := c.mux.Publish(context.Background(), resp); err != nil {
		deliver(mux.Outcome{}, err)
	}
}

// present 优先走推送通道，入队失败或会话没有推送令牌时回退到 URIHandler。
func (c *Client) present(ctx context.Context, topicID, requestURI string) error {
	state := c.mux.Session().Snapshot()
	if c.push != nil && state.PushToken != "" {
		err := c.push.Enqueue(ctx, push.Message{
			TopicID:      topicID,
			URI:          requestURI,
			PushToken:    state.PushToken,
			PublicEncKey: state.PublicEncKey,
		})
		if err == nil {
			return nil
		}
		c.logger.Warn("push enqueue failed, falling back to uri", slog.String("topic", topicID), slog.Any("err", err))
	}
	return c.handler.Show(ctx, requestURI)
}

func (c *Client) onPushResult(res push.Result) {
	if res.Err == nil {
		return
	}
	c.logger.Warn("push send failed, falling back to uri", slog.String("topic", res.Message.TopicID), slog.Any("err", res.Err))
	if err := c.handler.Show(context.Background(), res.Message.URI); err != nil {
		c.logger.Error("uri fallback failed", slog.String("topic", res.Message.TopicID), slog.Any("err", err))
	}
}

// RequestAddress 实现 provider.AddressRequester。
// 签名令牌必须携带 address 或 nad 声明；普通值原样返回，由 Subprovider 校验。
func (c *Client) RequestAddress(ctx context.Context) (string, error) {
	out, err := c.request(ctx, ChannelAddress, c.builder.Identity)
	if err != nil {
		return "", err
	}
	if out.Payload.Kind == topic.KindSignedToken {
		addr := out.Claims.String("address")
		if addr == "" {
			addr = out.Claims.String("nad")
		}
		if addr == "" {
			return "", apierrors.New(apierrors.CodeInvalidToken, "signed token carries no address")
		}
		return addr, nil
	}
	return out.Value(), nil
}

// SendTransaction 实现 provider.TransactionSender。
func (c *Client) SendTransaction(ctx context.Context, tx json.RawMessage) (string, error) {
	out, err := c.request(ctx, ChannelTx, func(callbackURL string) (string, error) {
		return c.builder.Transaction(tx, callbackURL)
	})
	if err != nil {
		return "", err
	}
	return out.Value(), nil
}

// SignTypedData 实现 provider.TypedDataSigner。
func (c *Client) SignTypedData(ctx context.Context, address string, typedData json.RawMessage) (string, error) {
	out, err := c.request(ctx, ChannelTypedData, func(callbackURL string) (string, error) {
		return c.builder.TypedData(address, typedData, callbackURL)
	})
	if err != nil {
		return "", err
	}
	return out.Value(), nil
}

// PersonalSign 实现 provider.PersonalSigner。
func (c *Client) PersonalSign(ctx context.Context, address, message string) (string, error) {
	out, err := c.request(ctx, ChannelPersonal, func(callbackURL string) (string, error) {
		return c.builder.PersonalSign(address, message, callbackURL)
	})
	if err != nil {
		return "", err
	}
	return out.Value(), nil
}
