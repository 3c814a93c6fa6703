package provider

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/tidwall/gjson"

	"github.com/aegis-sign/connect/pkg/apierrors"
)

// DialBaseProvider 连接上游节点（http/ws/ipc）。
func DialBaseProvider(ctx context.Context, endpoint string) (*rpc.Client, error) {
	return rpc.DialContext(ctx, endpoint)
}

// forward 将未拦截的方法原样交给 BaseProvider，不解释其结果。
func (s *Subprovider) forward(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if s.collab.Base == nil {
		return nil, ErrMethodNotFound
	}
	args, err := positionalArgs(params)
	if err != nil {
		return nil, err
	}
	var result json.RawMessage
	if err := s.collab.Base.CallContext(ctx, &result, method, args...); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return result, nil
}

func positionalArgs(params json.RawMessage) ([]interface{}, error) {
	parsed := gjson.ParseBytes(params)
	switch {
	case len(params) == 0 || parsed.Type == gjson.Null:
		return nil, nil
	case !parsed.IsArray():
		return nil, apierrors.New(apierrors.CodeInvalidArgument, "only positional params can be forwarded")
	}
	items := parsed.Array()
	args := make([]interface{}, len(items))
	for i, item := range items {
		args[i] = json.RawMessage(item.Raw)
	}
	return args, nil
}
