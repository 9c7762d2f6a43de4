package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeyPrefix marks issued API keys.
const KeyPrefix = "sk-"

const keyBytes = 24

// NewKey returns "sk-" followed by 48 random hex characters.
func NewKey() (string, error) {
	b := make([]byte, keyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(b), nil
}

// FromHeader extracts the key from an "Authorization: Bearer sk-..." value.
// It returns "" when the header carries no bearer token.
func FromHeader(h string) string {
	h = strings.TrimSpace(h)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// WellFormed reports whether key has the issued shape.
func WellFormed(key string) bool {
	if !strings.HasPrefix(key, KeyPrefix) || len(key) != len(KeyPrefix)+2*keyBytes {
		return false
	}
	_, err := hex.DecodeString(key[len(KeyPrefix):])
	return err == nil
}
