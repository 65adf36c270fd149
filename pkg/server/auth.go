package server

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor used when hashing a shared password for the
// config file.
const BcryptCost = 12

// HashPassword hashes a plaintext password with bcrypt, suitable for the
// auth.password config value.
func HashPassword(password string) (string, error) {
	if len(password) > 72 {
		return "", bcrypt.ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// checkSharedPassword verifies a supplied password against the configured
// one. An empty configured password accepts anything; a $2-prefixed value is
// treated as a bcrypt hash, everything else compares in constant time.
func checkSharedPassword(configured, supplied string) bool {
	if configured == "" {
		return true
	}
	if strings.HasPrefix(configured, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(supplied)) == 1
}
