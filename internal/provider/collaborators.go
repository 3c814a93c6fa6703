package provider

import (
	"context"
	"encoding/json"
)

// AddressRequester 通过 Topic 向签名端请求账户地址（或 MNID）。
type AddressRequester interface {
	RequestAddress(ctx context.Context) (string, error)
}

// TransactionSender 让签名端签名并广播交易，返回交易哈希。tx 已去掉 from 字段。
type TransactionSender interface {
	SendTransaction(ctx context.Context, tx json.RawMessage) (string, error)
}

// TypedDataSigner 请求 EIP-712 签名。
type TypedDataSigner interface {
	SignTypedData(ctx context.Context, address string, typedData json.RawMessage) (string, error)
}

// PersonalSigner 请求 personal_sign 签名，message 为 0x 十六进制或原文。
type PersonalSigner interface {
	PersonalSign(ctx context.Context, address, message string) (string, error)
}

// BaseProvider 承接未拦截的方法；*rpc.Client 直接满足该接口。
type BaseProvider interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Collaborators 汇总 Subprovider 依赖的外部协作者。
type Collaborators struct {
	Addresses AddressRequester
	Sender    TransactionSender
	TypedData TypedDataSigner
	Personal  PersonalSigner
	Base      BaseProvider
}
