// Package uri 构造交给签名端的请求 URI：`<scheme>:<target>?<query>`。
package uri

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tidwall/gjson"

	"github.com/aegis-sign/connect/pkg/apierrors"
	"github.com/aegis-sign/connect/pkg/mnid"
	"github.com/aegis-sign/connect/pkg/validator"
)

const (
	// DefaultScheme 是默认 URI scheme。
	DefaultScheme = "aegis"
	// TargetIdentity 表示请求身份而非调用合约。
	TargetIdentity = "me"
)

// Request 描述一次请求的全部 URI 参数。
type Request struct {
	Target      string
	Value       *big.Int
	Function    string
	Bytecode    string
	CallbackURL string
	Label       string
	ClientID    string
	// Extra 承载签名类请求的附加参数，例如 personal_sign 的消息。
	Extra map[string]string
}

// reservedParams 由 Request 的具名字段写入，Extra 中的同名键被忽略。
var reservedParams = map[string]bool{
	"value":        true,
	"function":     true,
	"bytecode":     true,
	"callback_url": true,
	"label":        true,
	"client_id":    true,
}

// Builder 持有应用级默认值。
type Builder struct {
	Scheme   string
	Label    string
	ClientID string
}

// Build 生成 URI；目标必须是 "me"、0x 地址或 MNID。
func (b Builder) Build(r Request) (string, error) {
	target := strings.TrimSpace(r.Target)
	if target == "" {
		target = TargetIdentity
	}
	if target != TargetIdentity && !validator.IsHexAddress(target) && !mnid.IsMNID(target) {
		return "", apierrors.New(apierrors.CodeInvalidArgument, fmt.Sprintf("invalid uri target %q", target))
	}
	if r.Bytecode != "" {
		if _, err := validator.DecodeHexData(r.Bytecode); err != nil {
			return "", apierrors.New(apierrors.CodeInvalidArgument, err.Error())
		}
	}
	q := url.Values{}
	if r.Value != nil {
		if r.Value.Sign() < 0 {
			return "", apierrors.New(apierrors.CodeInvalidArgument, "value must not be negative")
		}
		q.Set("value", r.Value.String())
	}
	setIf(q, "function", r.Function)
	setIf(q, "bytecode", r.Bytecode)
	setIf(q, "callback_url", r.CallbackURL)
	setIf(q, "label", firstNonEmpty(r.Label, b.Label))
	setIf(q, "client_id", firstNonEmpty(r.ClientID, b.ClientID))
	for k, v := range r.Extra {
		if reservedParams[k] {
			continue
		}
		setIf(q, k, v)
	}
	scheme := firstNonEmpty(b.Scheme, DefaultScheme)
	if len(q) == 0 {
		return scheme + ":" + target, nil
	}
	return scheme + ":" + target + "?" + q.Encode(), nil
}

// Identity 生成请求身份/地址的 URI。
func (b Builder) Identity(callbackURL string) (string, error) {
	return b.Build(Request{Target: TargetIdentity, CallbackURL: callbackURL})
}

// Transaction 将 eth_sendTransaction 参数对象转换为 URI：to 为目标，value 转十进制，data 作为 bytecode。
func (b Builder) Transaction(tx json.RawMessage, callbackURL string) (string, error) {
	doc := gjson.ParseBytes(tx)
	if !doc.IsObject() {
		return "", apierrors.New(apierrors.CodeInvalidArgument, "transaction must be an object")
	}
	to := doc.Get("to").String()
	if to == "" {
		return "", apierrors.New(apierrors.CodeContractCreationUnsupported, "transaction requires a to address")
	}
	req := Request{
		Target:      to,
		Function:    doc.Get("function").String(),
		Bytecode:    doc.Get("data").String(),
		CallbackURL: callbackURL,
	}
	if v := doc.Get("value").String(); v != "" {
		value, err := hexutil.DecodeBig(v)
		if err != nil {
			return "", apierrors.New(apierrors.CodeInvalidArgument, "invalid value: "+err.Error())
		}
		req.Value = value
	}
	extra := map[string]string{}
	for _, key := range []string{"gas", "gasPrice", "nonce"} {
		if v := doc.Get(key).String(); v != "" {
			extra[key] = v
		}
	}
	req.Extra = extra
	return b.Build(req)
}

// TypedData 生成 EIP-712 签名请求，typedData 以紧凑 JSON 放入 typedData 参数。
func (b Builder) TypedData(address string, typedData json.RawMessage, callbackURL string) (string, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, typedData); err != nil {
		return "", apierrors.New(apierrors.CodeInvalidArgument, "invalid typed data: "+err.Error())
	}
	return b.Build(Request{
		Target:      address,
		CallbackURL: callbackURL,
		Extra:       map[string]string{"typedData": compact.String()},
	})
}

// PersonalSign 生成 personal_sign 请求。
func (b Builder) PersonalSign(address, message, callbackURL string) (string, error) {
	if message == "" {
		return "", apierrors.New(apierrors.CodeInvalidArgument, "message is required")
	}
	return b.Build(Request{
		Target:      address,
		CallbackURL: callbackURL,
		Extra:       map[string]string{"personalSign": message},
	})
}

// Parse 解析 URI，用于签名端模拟与调试。
func Parse(raw string) (scheme string, r Request, err error) {
	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok || scheme == "" {
		return "", Request{}, apierrors.New(apierrors.CodeInvalidArgument, "uri has no scheme")
	}
	target, query, _ := strings.Cut(rest, "?")
	q, err := url.ParseQuery(query)
	if err != nil {
		return "", Request{}, apierrors.New(apierrors.CodeInvalidArgument, err.Error())
	}
	r = Request{
		Target:      target,
		Function:    q.Get("function"),
		Bytecode:    q.Get("bytecode"),
		CallbackURL: q.Get("callback_url"),
		Label:       q.Get("label"),
		ClientID:    q.Get("client_id"),
	}
	if v := q.Get("value"); v != "" {
		value, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return "", Request{}, apierrors.New(apierrors.CodeInvalidArgument, "invalid value "+v)
		}
		r.Value = value
	}
	for key := range reservedParams {
		q.Del(key)
	}
	if len(q) > 0 {
		r.Extra = make(map[string]string, len(q))
		for k := range q {
			r.Extra[k] = q.Get(k)
		}
	}
	return scheme, r, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
