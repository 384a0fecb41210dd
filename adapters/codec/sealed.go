package codec

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/ports"
)

const sealedKeyInfo = "verigate token v1"

// SealedCodec encrypts payloads with XChaCha20-Poly1305.
// Tokens are base64url(nonce || ciphertext) and cannot be read or altered without the secret.
type SealedCodec struct {
	aead cipher.AEAD
}

// NewSealed derives the AEAD key from secret with HKDF-SHA256
func NewSealed(secret string) (ports.Codec, error) {
	if secret == "" {
		return nil, core.ErrInvalidSecret
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealedKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive token key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	return &SealedCodec{aead: aead}, nil
}

// Encode seals the payload under a fresh random nonce
func (c *SealedCodec) Encode(payload core.Payload) (string, error) {
	plaintext, err := marshalPayload(payload)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens a sealed token
func (c *SealedCodec) Decode(token string) (core.Payload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return core.Payload{}, decodeError("invalid base64 encoding: %v", err)
	}
	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return core.Payload{}, decodeError("token too short")
	}

	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return core.Payload{}, decodeError("authentication failed")
	}

	return unmarshalPayload(plaintext)
}
