package newsletter

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// generateToken returns 32 random bytes hex-encoded.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
