package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	DefaultKeyLength = 64
	MinKeyLength     = 32
	MaxKeyLength     = 128
)

const keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ClampKeyLength limits n to [MinKeyLength, MaxKeyLength].
func ClampKeyLength(n int) int {
	return max(MinKeyLength, min(MaxKeyLength, n))
}

// GenerateKey returns a random alphanumeric API key. The length is clamped.
func GenerateKey(length int) (string, error) {
	length = ClampKeyLength(length)
	limit := big.NewInt(int64(len(keyAlphabet)))

	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate key: %w", err)
		}
		buf[i] = keyAlphabet[n.Int64()]
	}
	return string(buf), nil
}
