// Package crypto holds the password hashing and token helpers shared by the
// auth and invite flows.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("crypto: password must not be empty")
	// ErrPasswordTooLong is returned for passwords bcrypt would truncate.
	ErrPasswordTooLong = errors.New("crypto: password exceeds 72 bytes")
)

// PasswordCost is the bcrypt cost of new hashes. Hashes below it are
// upgraded on the next successful login.
var PasswordCost = bcrypt.DefaultCost

const maxPasswordBytes = 72

// HashPassword returns the bcrypt hash of password at PasswordCost.
func HashPassword(password string) (string, error) {
	switch {
	case password == "":
		return "", ErrEmptyPassword
	case len(password) > maxPasswordBytes:
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("crypto: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. An empty hash never matches.
func VerifyPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether hash was produced below PasswordCost or cannot be read.
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost < PasswordCost
}

// GenerateToken returns n random bytes encoded as unpadded URL-safe base64.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("crypto: token length must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("crypto: read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Fingerprint returns a short non-reversible identifier of secret for logs.
func Fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:6])
}
