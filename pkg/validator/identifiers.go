package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const maxTopicIDLen = 128

var (
	errTopicIDEmpty   = errors.New("topic id is required")
	errTopicIDTooLong = fmt.Errorf("topic id exceeds %d characters", maxTopicIDLen)
)

// ValidateTopicID 确保 topic id 只包含 URL 安全字符，可直接拼接到 relay 路径。
func ValidateTopicID(id string) error {
	if id == "" {
		return errTopicIDEmpty
	}
	if len(id) > maxTopicIDLen {
		return errTopicIDTooLong
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("topic id contains invalid character %q", r)
		}
	}
	return nil
}

// IsHexAddress 判断是否为 0x 前缀的 20 字节十六进制地址。
func IsHexAddress(raw string) bool {
	raw = strings.TrimSpace(raw)
	return strings.HasPrefix(raw, "0x") && common.IsHexAddress(raw)
}

// NormalizeAddress 校验十六进制地址并返回 EIP-55 校验和格式。
func NormalizeAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !IsHexAddress(raw) {
		return "", fmt.Errorf("invalid hex address %q", raw)
	}
	return common.HexToAddress(raw).Hex(), nil
}

// SameAddress 忽略大小写比较两个十六进制地址。
func SameAddress(a, b string) bool {
	if !IsHexAddress(a) || !IsHexAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}

// DecodeHexData 解码 0x 前缀的十六进制数据（bytecode、calldata、签名消息）。
func DecodeHexData(raw string) ([]byte, error) {
	decoded, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return decoded, nil
}
