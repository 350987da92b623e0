/**
 * @description
 * This package implements the salted PIN hashing used for account credentials.
 * A PIN is never stored or compared in plaintext: each account carries a random
 * per-account salt, and only the hex digest of SHA-256(pin || salt) is persisted.
 * Hashing is deterministic for a given pin/salt pair, which allows verification
 * by re-hashing the supplied PIN with the stored salt.
 *
 * @dependencies
 * - crypto/rand, crypto/sha256, crypto/subtle, encoding/hex: Standard Go libraries.
 */
package pinhash

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// saltBytes is the length of the raw random salt before hex encoding.
const saltBytes = 16

// GenerateSalt returns a fresh, unpredictable per-account salt as a hex string.
func GenerateSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Hash returns the hex digest of SHA-256 over the PIN concatenated with the salt.
func Hash(pin, salt string) string {
	sum := sha256.Sum256([]byte(pin + salt))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the supplied PIN, hashed with the stored salt, matches
// the stored digest. The comparison is constant-time.
func Verify(pin, salt, digest string) bool {
	computed := Hash(pin, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
