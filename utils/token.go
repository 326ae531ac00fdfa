package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// publicTokenBytes gives 192 bits of entropy; tokens are the only external
// handle on a session, so they must be unguessable.
const publicTokenBytes = 24

// NewPublicToken generates the opaque token assigned once at session
// creation and used in all external references.
func NewPublicToken() (string, error) {
	return GenerateRandomToken(publicTokenBytes)
}

// GenerateRandomToken returns a URL-safe random token of the given byte length.
func GenerateRandomToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
