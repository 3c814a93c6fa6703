package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultRelayURL 是推送中继的默认地址。
const DefaultRelayURL = "https://push.aegis-sign.dev/api/v3/sns"

// RelaySender 加密请求 URI 并以 Bearer pushToken 提交到推送中继。
type RelaySender struct {
	url    string
	client *http.Client
}

// NewRelaySender 构造推送中继 Sender，url 为空时使用默认地址。
func NewRelaySender(url string, client *http.Client) *RelaySender {
	if url == "" {
		url = DefaultRelayURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RelaySender{url: url, client: client}
}

// Name 实现 Sender。
func (s *RelaySender) Name() string { return "relay" }

type relayBody struct {
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// Send 实现 Sender。没有加密公钥时拒绝发送明文。
func (s *RelaySender) Send(ctx context.Context, msg Message) error {
	if msg.PublicEncKey == "" {
		return fmt.Errorf("topic %s: no public encryption key in session", msg.TopicID)
	}
	plaintext, err := json.Marshal(map[string]string{"url": msg.URI})
	if err != nil {
		return err
	}
	env, err := Seal(msg.PublicEncKey, plaintext)
	if err != nil {
		return err
	}
	sealed, err := json.Marshal(env)
	if err != nil {
		return err
	}
	body, err := json.Marshal(relayBody{Message: string(sealed)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+msg.PushToken)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("push relay responded %d", resp.StatusCode)
	}
	return nil
}
