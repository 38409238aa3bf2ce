package store

import (
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const (
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 32
	saltBytes        = 16
)

// HashPassword derives a PBKDF2-SHA256 hash of password. An empty salt
// generates a random one. Both values are hex encoded; the salt is used as
// its hex text, not its decoded bytes.
func HashPassword(password, salt string) (hash, usedSalt string, err error) {
	if salt == "" {
		b := make([]byte, saltBytes)
		if _, err := rand.Read(b); err != nil {
			return "", "", fmt.Errorf("generating salt: %w", err)
		}
		salt = hex.EncodeToString(b)
	}
	key, err := pbkdf2.Key(sha256.New, password, []byte(salt), pbkdf2Iterations, pbkdf2KeyLen)
	if err != nil {
		return "", "", fmt.Errorf("deriving key: %w", err)
	}
	return hex.EncodeToString(key), salt, nil
}

// VerifyPassword reports whether password hashes to expected under salt.
func VerifyPassword(password, salt, expected string) bool {
	if salt == "" || expected == "" {
		return false
	}
	got, _, err := HashPassword(password, salt)
	if err != nil {
		return false
	}
	a, errA := hex.DecodeString(got)
	b, errB := hex.DecodeString(expected)
	if errA != nil || errB != nil {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
