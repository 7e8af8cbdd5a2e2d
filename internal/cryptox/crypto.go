// Package cryptox groups the hashing primitives used by the credential
// subsystem: slow password hashing, deterministic token digests, and
// random token material.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword derives a bcrypt hash (per-record salt is embedded in the
// output) suitable for persistent storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the stored
// bcrypt hash.
func CheckPassword(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashToken computes the hex-encoded SHA-256 digest of a raw token string.
// Signed tokens exceed bcrypt's input limit, and their entropy comes from
// the HMAC signature rather than from a low-entropy secret, so a fast
// deterministic digest is the right fit here.
func HashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// CompareTokenHash compares a raw token against a stored digest in constant
// time. It never fails; a mismatch simply returns false.
func CompareTokenHash(rawToken string, storedHash string) bool {
	computed := HashToken(rawToken)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// MakeRandHexString generates a random hexadecimal string from size random
// bytes. The resulting string is twice as long as size.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
