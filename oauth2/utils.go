package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateState returns a random URL-safe value used to correlate an
// authorization request with its callback.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
