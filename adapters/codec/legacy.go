package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/ports"
)

const (
	saltedPrefix = "Salted__"
	saltSize     = 8
	legacyKeyLen = 32
)

// LegacyCodec reads and writes the OpenSSL passphrase format produced by
// CryptoJS.AES.encrypt(JSON.stringify(payload), secret): base64("Salted__" || salt || AES-256-CBC(payload)),
// key and iv derived with EVP_BytesToKey over MD5.
//
// The format has no integrity protection beyond PKCS#7 padding and JSON parsing.
type LegacyCodec struct {
	secret []byte
}

// NewLegacy creates a CryptoJS compatible codec
func NewLegacy(secret string) (ports.Codec, error) {
	if secret == "" {
		return nil, core.ErrInvalidSecret
	}
	return &LegacyCodec{secret: []byte(secret)}, nil
}

// Encode encrypts the payload under a fresh random salt
func (c *LegacyCodec) Encode(payload core.Payload) (string, error) {
	plaintext, err := marshalPayload(payload)
	if err != nil {
		return "", err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key, iv := evpBytesToKey(c.secret, salt, legacyKeyLen, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(saltedPrefix)+saltSize+len(padded))
	copy(out, saltedPrefix)
	copy(out[len(saltedPrefix):], salt)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(saltedPrefix)+saltSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decode decrypts a salted token
func (c *LegacyCodec) Decode(token string) (core.Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return core.Payload{}, decodeError("invalid base64 encoding: %v", err)
	}

	header := len(saltedPrefix) + saltSize
	if len(raw) < header+aes.BlockSize || !bytes.HasPrefix(raw, []byte(saltedPrefix)) {
		return core.Payload{}, decodeError("missing salted header")
	}
	ciphertext := raw[header:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return core.Payload{}, decodeError("ciphertext is not a multiple of the block size")
	}

	key, iv := evpBytesToKey(c.secret, raw[len(saltedPrefix):header], legacyKeyLen, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return core.Payload{}, decodeError("failed to create cipher: %v", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return core.Payload{}, err
	}

	return unmarshalPayload(plaintext)
}

// evpBytesToKey is OpenSSL's EVP_BytesToKey with MD5 and a single iteration
func evpBytesToKey(password, salt []byte, keyLen, ivLen int) ([]byte, []byte) {
	var derived, block []byte
	for len(derived) < keyLen+ivLen {
		h := md5.New()
		h.Write(block)
		h.Write(password)
		h.Write(salt)
		block = h.Sum(nil)
		derived = append(derived, block...)
	}
	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, decodeError("invalid padding")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, decodeError("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, decodeError("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
