package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// stateBytes is the number of random bytes behind an OAuth state value.
// 32 bytes encodes to 43 base64url characters, satisfying identity
// providers that require a minimum of 32 characters.
const stateBytes = 32

// GenerateState returns a random base64url-encoded state parameter. The
// state links a callback to the session that started the login and doubles
// as CSRF protection.
func GenerateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
