// Package mnid 实现多网络标识（MNID）的编解码：
// base58(version || network || address || sha3_256(...)[:4])。
package mnid

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/sha3"
)

const (
	version     byte = 0x01
	addressLen       = 20
	checksumLen      = 4
)

var (
	// ErrChecksum 表示 MNID 校验和不匹配。
	ErrChecksum = errors.New("invalid mnid checksum")
	// ErrMalformed 表示 MNID 无法解码或长度不合法。
	ErrMalformed = errors.New("malformed mnid")
)

// Account 是 MNID 中携带的网络与地址，均为 0x 前缀十六进制。
type Account struct {
	Network string
	Address string
}

// Encode 生成 MNID。
func Encode(acc Account) (string, error) {
	network, err := hexToBytes(acc.Network)
	if err != nil || len(network) == 0 {
		return "", fmt.Errorf("invalid network %q", acc.Network)
	}
	address, err := hexToBytes(acc.Address)
	if err != nil || len(address) != addressLen {
		return "", fmt.Errorf("invalid address %q", acc.Address)
	}
	payload := make([]byte, 0, 1+len(network)+addressLen+checksumLen)
	payload = append(payload, version)
	payload = append(payload, network...)
	payload = append(payload, address...)
	payload = append(payload, checksum(payload)...)
	return base58.Encode(payload), nil
}

// Decode 解析 MNID 并校验 checksum。
func Decode(encoded string) (Account, error) {
	data, err := base58.Decode(strings.TrimSpace(encoded))
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	netEnd := len(data) - addressLen - checksumLen
	if netEnd <= 1 {
		return Account{}, ErrMalformed
	}
	body := data[:netEnd+addressLen]
	if !bytes.Equal(data[netEnd+addressLen:], checksum(body)) {
		return Account{}, ErrChecksum
	}
	return Account{
		Network: "0x" + hex.EncodeToString(data[1:netEnd]),
		Address: "0x" + hex.EncodeToString(data[netEnd:netEnd+addressLen]),
	}, nil
}

// IsMNID 判断字符串能否作为 MNID 解码。
func IsMNID(encoded string) bool {
	if strings.HasPrefix(encoded, "0x") {
		return false
	}
	_, err := Decode(encoded)
	return err == nil
}

// SameNetwork 按数值比较两个十六进制网络 id（0x4 与 0x04 相等）。
func SameNetwork(a, b string) bool {
	x, okA := parseNetwork(a)
	y, okB := parseNetwork(b)
	return okA && okB && x.Cmp(y) == 0
}

func parseNetwork(raw string) (*big.Int, bool) {
	raw = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "0x")
	if raw == "" {
		return nil, false
	}
	return new(big.Int).SetString(raw, 16)
}

func checksum(payload []byte) []byte {
	sum := sha3.Sum256(payload)
	return sum[:checksumLen]
}

func hexToBytes(raw string) ([]byte, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if len(raw)%2 == 1 {
		raw = "0" + raw
	}
	return hex.DecodeString(raw)
}
