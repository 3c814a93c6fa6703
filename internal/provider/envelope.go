package provider

import (
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/aegis-sign/connect/pkg/apierrors"
)

const (
	version = "2.0"

	codeParseError     = -32700
	codeInvalidRequest = -32600
)

// Request 是 JSON-RPC 2.0 请求。
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response 是 JSON-RPC 2.0 响应，Result 与 Error 二选一。
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError 是 JSON-RPC error 对象。
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error 实现 error 接口。
func (e *RPCError) Error() string {
	return e.Message
}

func newResult(id json.RawMessage, result json.RawMessage) Response {
	return Response{JSONRPC: version, ID: responseID(id), Result: result}
}

func newError(id json.RawMessage, err error) Response {
	return Response{JSONRPC: version, ID: responseID(id), Error: toRPCError(err)}
}

func responseID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// toRPCError 映射错误码：业务错误走 apierrors，上游节点错误保留其原始 code。
func toRPCError(err error) *RPCError {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if apiErr, ok := apierrors.FromError(err); ok {
		return &RPCError{Code: apierrors.RPCCode(apiErr.Code), Message: apiErr.Error(), Data: string(apiErr.Code)}
	}
	var upstream rpc.Error
	if errors.As(err, &upstream) {
		out := &RPCError{Code: upstream.ErrorCode(), Message: upstream.Error()}
		var withData rpc.DataError
		if errors.As(err, &withData) {
			out.Data = withData.ErrorData()
		}
		return out
	}
	return &RPCError{Code: apierrors.RPCCode(""), Message: err.Error()}
}
