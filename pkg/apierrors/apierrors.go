package apierrors

import (
	"errors"
	"strconv"
	"time"

	"google.golang.org/grpc/codes"
)

// Code 表示统一业务错误码。
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeRetryLater      Code = "RETRY_LATER"

	// 传输层：relay 读写失败、非 2xx 响应。
	CodeTransport Code = "TRANSPORT"
	// 签名端通过 error 通道显式返回失败。
	CodeRemote Code = "REMOTE"
	// 本地校验失败。
	CodeNetworkMismatch Code = "NETWORK_MISMATCH"
	CodeInvalidToken    Code = "INVALID_TOKEN"
	CodeAddressMismatch Code = "ADDRESS_MISMATCH"
	// 调用方误用，立即同步返回。
	CodeMissingID                   Code = "MISSING_ID"
	CodeContractCreationUnsupported Code = "CONTRACT_CREATION_UNSUPPORTED"
	CodeSyncUnsupported             Code = "SYNC_UNSUPPORTED"
	// 调用方或应用放弃了请求。
	CodeCancelled Code = "CANCELLED"
)

var httpStatusMap = map[Code]int{
	CodeInvalidArgument:             400,
	CodeNotFound:                    404,
	CodeConflict:                    409,
	CodeRetryLater:                  429,
	CodeTransport:                   502,
	CodeRemote:                      422,
	CodeNetworkMismatch:             422,
	CodeInvalidToken:                401,
	CodeAddressMismatch:             422,
	CodeMissingID:                   400,
	CodeContractCreationUnsupported: 400,
	CodeSyncUnsupported:             400,
	CodeCancelled:                   499,
}

var grpcStatusMap = map[Code]codes.Code{
	CodeInvalidArgument:             codes.InvalidArgument,
	CodeNotFound:                    codes.NotFound,
	CodeConflict:                    codes.AlreadyExists,
	CodeRetryLater:                  codes.ResourceExhausted,
	CodeTransport:                   codes.Unavailable,
	CodeRemote:                      codes.Aborted,
	CodeNetworkMismatch:             codes.FailedPrecondition,
	CodeInvalidToken:                codes.Unauthenticated,
	CodeAddressMismatch:             codes.FailedPrecondition,
	CodeMissingID:                   codes.InvalidArgument,
	CodeContractCreationUnsupported: codes.Unimplemented,
	CodeSyncUnsupported:             codes.Unimplemented,
	CodeCancelled:                   codes.Canceled,
}

// JSON-RPC 错误码，-32000 ~ -32099 为实现自定义区间；4001 沿用钱包的用户拒绝码。
var rpcCodeMap = map[Code]int{
	CodeInvalidArgument:             -32602,
	CodeNotFound:                    -32601,
	CodeRetryLater:                  -32005,
	CodeTransport:                   -32003,
	CodeRemote:                      4001,
	CodeNetworkMismatch:             -32010,
	CodeInvalidToken:                -32011,
	CodeAddressMismatch:             -32012,
	CodeMissingID:                   -32600,
	CodeContractCreationUnsupported: -32013,
	CodeSyncUnsupported:             -32014,
	CodeCancelled:                   -32015,
}

// Error 表示带统一错误码的业务错误。
type Error struct {
	Code       Code
	Message    string
	retryAfter time.Duration
}

// New 创建一个新的业务错误。
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Remote 构造签名端返回的错误，消息原样保留。
func Remote(message string) *Error {
	return New(CodeRemote, message)
}

// WithRetryAfter 设置 Retry-After 提示，返回自身方便链式调用。
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.retryAfter = d
	return e
}

// RetryAfterHint 以秒为单位返回 Retry-After 提示文本。
func (e *Error) RetryAfterHint() string {
	if e == nil || e.retryAfter <= 0 {
		return ""
	}
	seconds := int((e.retryAfter + time.Second - 1) / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Is 让哨兵错误按错误码匹配：target 无消息时只比较 Code。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// FromError 尝试从通用 error 中解析业务错误。
func FromError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// HasCode 判断 err 链上是否存在指定错误码。
func HasCode(err error, code Code) bool {
	apiErr, ok := FromError(err)
	return ok && apiErr.Code == code
}

// HTTPStatus 返回对应的 HTTP 状态码，未知错误默认 500。
func HTTPStatus(code Code) int {
	if status, ok := httpStatusMap[code]; ok {
		return status
	}
	return 500
}

// GRPCStatus 返回对应的 gRPC code，未知错误默认 Internal。
func GRPCStatus(code Code) codes.Code {
	if status, ok := grpcStatusMap[code]; ok {
		return status
	}
	return codes.Internal
}

// RPCCode 返回 JSON-RPC error.code，未知错误默认 -32603。
func RPCCode(code Code) int {
	if rpcCode, ok := rpcCodeMap[code]; ok {
		return rpcCode
	}
	return -32603
}

// RequiresRetryAfter 标记是否必须携带 Retry-After 头。
func RequiresRetryAfter(code Code) bool {
	return code == CodeRetryLater
}
