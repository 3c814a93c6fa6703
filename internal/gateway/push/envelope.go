package push

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"
)

// EnvelopeVersion 标识加密方案。
const EnvelopeVersion = "x25519-xsalsa20-poly1305"

// Envelope 是使用接收方 x25519 公钥加密后的推送载荷，字段均为标准 base64。
type Envelope struct {
	Version        string `json:"version"`
	Nonce          string `json:"nonce"`
	EphemPublicKey string `json:"ephemPublicKey"`
	Ciphertext     string `json:"ciphertext"`
}

// Seal 用临时密钥对加密 plaintext。
func Seal(recipientKey string, plaintext []byte) (Envelope, error) {
	return seal(rand.Reader, recipientKey, plaintext)
}

func seal(random io.Reader, recipientKey string, plaintext []byte) (Envelope, error) {
	peer, err := decodeKey(recipientKey)
	if err != nil {
		return Envelope{}, err
	}
	ephemPub, ephemPriv, err := box.GenerateKey(random)
	if err != nil {
		return Envelope{}, fmt.Errorf("generate ephemeral key: %w", err)
	}
	var nonce [24]byte
	if _, err := io.ReadFull(random, nonce[:]); err != nil {
		return Envelope{}, fmt.Errorf("read nonce: %w", err)
	}
	sealed := box.Seal(nil, plaintext, &nonce, peer, ephemPriv)
	return Envelope{
		Version:        EnvelopeVersion,
		Nonce:          base64.StdEncoding.EncodeToString(nonce[:]),
		EphemPublicKey: base64.StdEncoding.EncodeToString(ephemPub[:]),
		Ciphertext:     base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

// Open 用接收方私钥解密，签名端与测试使用。
func Open(env Envelope, privateKey *[32]byte) ([]byte, error) {
	if env.Version != EnvelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %q", env.Version)
	}
	ephem, err := decodeKey(env.EphemPublicKey)
	if err != nil {
		return nil, err
	}
	rawNonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil || len(rawNonce) != 24 {
		return nil, errors.New("invalid nonce")
	}
	var nonce [24]byte
	copy(nonce[:], rawNonce)
	sealed, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext: %w", err)
	}
	out, ok := box.Open(nil, sealed, &nonce, ephem, privateKey)
	if !ok {
		return nil, errors.New("envelope authentication failed")
	}
	return out, nil
}

func decodeKey(encoded string) (*[32]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) != 32 {
		return nil, errors.New("public encryption key must be 32 bytes of base64")
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}
