package push

import (
	"context"
	"errors"

	fbase "firebase.google.com/go"
	fcm "firebase.google.com/go/messaging"
	"google.golang.org/api/option"
)

// FCMClient 是 firebase messaging 客户端的最小接口。
type FCMClient interface {
	Send(ctx context.Context, message *fcm.Message) (string, error)
}

// FCMConfig 描述 Firebase 项目。
type FCMConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	APIKey          string `yaml:"api_key"`
}

// FCMSender 通过 Firebase Cloud Messaging 以数据消息推送请求 URI。
type FCMSender struct {
	client FCMClient
}

// NewFCMSender 初始化 firebase app 与 messaging 客户端。
func NewFCMSender(ctx context.Context, cfg FCMConfig) (*FCMSender, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	default:
		return nil, errors.New("fcm credentials_file or api_key is required")
	}
	app, err := fbase.NewApp(ctx, &fbase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	return NewFCMSenderWithClient(client), nil
}

// NewFCMSenderWithClient 使用已有客户端。
func NewFCMSenderWithClient(client FCMClient) *FCMSender {
	return &FCMSender{client: client}
}

// Name 实现 Sender。
func (s *FCMSender) Name() string { return "fcm" }

// Send 实现 Sender。有加密公钥时发送密文，否则只发送 URI。
func (s *FCMSender) Send(ctx context.Context, msg Message) error {
	data := map[string]string{"topic": msg.TopicID}
	if msg.PublicEncKey != "" {
		env, err := Seal(msg.PublicEncKey, []byte(msg.URI))
		if err != nil {
			return err
		}
		data["version"] = env.Version
		data["nonce"] = env.Nonce
		data["ephemPublicKey"] = env.EphemPublicKey
		data["ciphertext"] = env.Ciphertext
	} else {
		data["url"] = msg.URI
	}
	_, err := s.client.Send(ctx, &fcm.Message{
		Token: msg.PushToken,
		Data:  data,
		Notification: &fcm.Notification{
			Title: "Signature request",
			Body:  "Open your wallet to review the request",
		},
	})
	return err
}
