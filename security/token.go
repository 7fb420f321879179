package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const publicTokenBytes = 16

// GeneratePublicToken returns an unguessable, URL-safe token for the
// shareable invoice link.
func GeneratePublicToken() (string, error) {
	buf := make([]byte, publicTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
