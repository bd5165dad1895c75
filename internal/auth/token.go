package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

const tokenBytes = 32

// NewSessionToken returns a 256-bit random token encoded as hex.
func NewSessionToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewCapability returns a 256-bit random key in URL-safe base64,
// used for public link capabilities.
func NewCapability() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
