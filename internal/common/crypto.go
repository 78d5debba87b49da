package common

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateCacheKey returns a random AES key of size bytes, base64 encoded.
func GenerateCacheKey(size int) (string, error) {
	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
