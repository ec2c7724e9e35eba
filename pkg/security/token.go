package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// rawTokenSize is the entropy of a reset/verification token in bytes
const rawTokenSize = 32

// GenerateToken returns a new random raw token as a hex string
func GenerateToken() (string, error) {
	b := make([]byte, rawTokenSize)

	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// Fingerprint derives the stored lookup key for a raw token. This is
// deliberately a plain sha256 and not argon2: the input already has
// 32 bytes of entropy so there's nothing to brute-force, and lookups
// have to be cheap.
func Fingerprint(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
