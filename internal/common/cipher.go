package common

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	ErrInvalidCacheKey   = errors.New("cache key must be 16, 24 or 32 bytes")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrInvalidPadding    = errors.New("invalid padding")
)

// CacheCipher encrypts short secrets (third-party bearer tokens) for storage
// at rest. The output format is base64(iv || AES-CFB(base64(pad(plaintext)))).
type CacheCipher struct {
	block cipher.Block
	rand  io.Reader
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	for i := 0; i < n; i++ {
		out = append(out, byte(n))
	}
	return out
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrInvalidPadding
	}
	return data[:len(data)-n], nil
}

// Encrypt pads and encrypts plaintext under a fresh random IV.
func (c *CacheCipher) Encrypt(plaintext string) (string, error) {
	padded := pad([]byte(plaintext), aes.BlockSize)
	encoded := base64.StdEncoding.EncodeToString(padded)

	out := make([]byte, aes.BlockSize+len(encoded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	cipher.NewCFBEncrypter(c.block, iv).XORKeyStream(out[aes.BlockSize:], []byte(encoded))
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func (c *CacheCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(raw) < aes.BlockSize {
		return "", ErrInvalidCiphertext
	}
	iv, body := raw[:aes.BlockSize], raw[aes.BlockSize:]
	encoded := make([]byte, len(body))
	cipher.NewCFBDecrypter(c.block, iv).XORKeyStream(encoded, body)

	padded, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	plaintext, err := unpad(padded, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// NewCacheCipher creates a cipher from a raw AES key.
func NewCacheCipher(key []byte) (*CacheCipher, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidCacheKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &CacheCipher{block: block, rand: rand.Reader}, nil
}

// NewCacheCipherFromBase64 creates a cipher from a base64 encoded key as found
// in the configuration file.
func NewCacheCipherFromBase64(encodedKey string) (*CacheCipher, error) {
	if encodedKey == "" {
		return nil, ErrInvalidCacheKey
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode cache key: %w", err)
	}
	return NewCacheCipher(key)
}
