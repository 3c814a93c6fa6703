package relay

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrExists 表示邮箱已有消息（先写者胜）。
var ErrExists = errors.New("mailbox already has a message")

// Mailbox 是一个 topic id 下的消息。
type Mailbox struct {
	Message   json.RawMessage
	CreatedAt time.Time
}

// Store 持久化邮箱；实现需并发安全。
type Store interface {
	Get(ctx context.Context, id string) (Mailbox, bool, error)
	// Put 写入消息；已存在时返回 ErrExists。
	Put(ctx context.Context, id string, box Mailbox) error
	Delete(ctx context.Context, id string) error
	// DeleteBefore 删除 cutoff 之前写入的邮箱，返回删除数量。
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}
