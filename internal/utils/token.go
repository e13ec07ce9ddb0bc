package utils

import (
	"crypto/rand"
	"fmt"
)

const (
	TokenLength   = 10
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
)

// GenerateToken returns a random URL-safe poll token.
func GenerateToken() (string, error) {
	buf := make([]byte, TokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	// 64 symbols, so masking keeps the distribution uniform
	for i := range buf {
		buf[i] = tokenAlphabet[buf[i]&63]
	}
	return string(buf), nil
}
