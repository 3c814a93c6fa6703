package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/aegis-sign/connect/pkg/apierrors"
	"github.com/aegis-sign/connect/pkg/mnid"
	"github.com/aegis-sign/connect/pkg/validator"
)

// Address 返回账户地址：命中缓存不产生任何请求，否则向签名端请求并校验网络。
func (s *Subprovider) Address(ctx context.Context) (string, error) {
	return s.cache.Resolve(ctx, func(ctx context.Context) (string, error) {
		raw, err := s.collab.Addresses.RequestAddress(ctx)
		if err != nil {
			return "", err
		}
		return s.checkAddress(raw)
	})
}

// checkAddress 解析签名端返回的地址；MNID 的网络必须与配置一致。
func (s *Subprovider) checkAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if mnid.IsMNID(raw) {
		acc, err := mnid.Decode(raw)
		if err != nil {
			return "", apierrors.New(apierrors.CodeInvalidArgument, err.Error())
		}
		if s.cfg.Network != "" && !mnid.SameNetwork(acc.Network, s.cfg.Network) {
			return "", apierrors.New(apierrors.CodeNetworkMismatch,
				"address network "+acc.Network+" does not match configured network "+s.cfg.Network)
		}
		raw = acc.Address
	}
	addr, err := validator.NormalizeAddress(raw)
	if err != nil {
		return "", apierrors.New(apierrors.CodeInvalidArgument, err.Error())
	}
	return addr, nil
}

func (s *Subprovider) coinbase(ctx context.Context) (json.RawMessage, error) {
	addr, err := s.Address(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(addr)
}

func (s *Subprovider) accounts(ctx context.Context) (json.RawMessage, error) {
	addr, err := s.Address(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]string{addr})
}

func (s *Subprovider) sendTransaction(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	tx := gjson.GetBytes(params, "0")
	if !tx.IsObject() {
		return nil, apierrors.New(apierrors.CodeInvalidArgument, "eth_sendTransaction expects a transaction object")
	}
	if to := tx.Get("to"); !to.Exists() || to.Type == gjson.Null || to.String() == "" {
		return nil, apierrors.New(apierrors.CodeContractCreationUnsupported, "contract creation is not supported, transaction requires a to address")
	}
	if from := tx.Get("from"); from.Exists() && from.String() != "" {
		if cached, ok := s.cache.Get(); ok && !validator.SameAddress(from.String(), cached) {
			return nil, apierrors.New(apierrors.CodeAddressMismatch, "from address "+from.String()+" does not match the connected account")
		}
	}
	stripped, err := sjson.DeleteBytes([]byte(tx.Raw), "from")
	if err != nil {
		return nil, apierrors.New(apierrors.CodeInvalidArgument, err.Error())
	}
	hash, err := s.collab.Sender.SendTransaction(ctx, stripped)
	if err != nil {
		return nil, err
	}
	return json.Marshal(hash)
}

// signTypedData 接受 [address, typedData]（v3）与 [typedData, address]（v1）两种参数顺序。
func (s *Subprovider) signTypedData(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	if s.collab.TypedData == nil {
		return nil, ErrMethodNotFound
	}
	args := gjson.ParseBytes(params).Array()
	if len(args) < 2 {
		return nil, apierrors.New(apierrors.CodeInvalidArgument, "typed data signing expects an address and typed data")
	}
	address, data := args[0], args[1]
	if !isAddressArg(address) && isAddressArg(data) {
		address, data = data, address
	}
	typed := json.RawMessage(data.Raw)
	if data.Type == gjson.String {
		typed = json.RawMessage(data.String())
	}
	if !gjson.ValidBytes(typed) {
		return nil, apierrors.New(apierrors.CodeInvalidArgument, "typed data must be JSON")
	}
	sig, err := s.collab.TypedData.SignTypedData(ctx, address.String(), typed)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sig)
}

// personalSign 接受 [message, address]，参数颠倒时自动纠正。
func (s *Subprovider) personalSign(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	if s.collab.Personal == nil {
		return nil, ErrMethodNotFound
	}
	args := gjson.ParseBytes(params).Array()
	if len(args) < 2 {
		return nil, apierrors.New(apierrors.CodeInvalidArgument, "personal_sign expects a message and an address")
	}
	message, address := args[0], args[1]
	if isAddressArg(message) && !isAddressArg(address) {
		message, address = address, message
	}
	sig, err := s.collab.Personal.PersonalSign(ctx, address.String(), message.String())
	if err != nil {
		return nil, err
	}
	return json.Marshal(sig)
}

func isAddressArg(v gjson.Result) bool {
	return v.Type == gjson.String && validator.IsHexAddress(v.String())
}
