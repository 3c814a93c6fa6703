package relayapi

import (
	"context"
	"encoding/json"
)

// Backend 定义邮箱业务接口，HTTP/gRPC handler 通过它访问 relay.Service。
type Backend interface {
	Fetch(ctx context.Context, id string) (json.RawMessage, bool, error)
	Deliver(ctx context.Context, id string, msg json.RawMessage) error
	Clear(ctx context.Context, id string) error
	Watch(ctx context.Context, id string) (json.RawMessage, error)
}
