package topic

import "github.com/aegis-sign/connect/pkg/apierrors"

var (
	// ErrCancelled 表示调用方或应用主动放弃了该 Topic。
	ErrCancelled = apierrors.New(apierrors.CodeCancelled, "topic cancelled")
	// ErrEmptyName 表示 CreateTopic 未提供通道名。
	ErrEmptyName = apierrors.New(apierrors.CodeInvalidArgument, "topic name is required")
	// ErrInvalidRelayResponse 表示 relay 返回了无法解析的 body。
	ErrInvalidRelayResponse = apierrors.New(apierrors.CodeTransport, "invalid relay response body")
)
