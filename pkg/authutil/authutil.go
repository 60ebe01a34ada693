// Package authutil provides the password hashing and session token
// primitives the login scripts use. Hashing is salted SHA-256; verification
// is constant-time.
package authutil

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const (
	DefaultSaltLen  = 16
	sessionTokenLen = 32
)

func SHA256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// GenerateSalt returns length random bytes, hex-encoded.
func GenerateSalt(length int) (string, error) {
	if length <= 0 {
		length = DefaultSaltLen
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func HashPassword(password, salt string) string {
	return SHA256Hex(salt + password)
}

func VerifyPassword(password, hash, salt string) bool {
	computed := HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// GenerateSessionToken returns a 64-char hex token.
func GenerateSessionToken() (string, error) {
	buf := make([]byte, sessionTokenLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
