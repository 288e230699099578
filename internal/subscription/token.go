package subscription

import (
	"crypto/rand"
	"encoding/base64"
)

// NewToken mints an opaque URL-safe access token (32 random bytes).
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
