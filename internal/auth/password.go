// Package auth implements the credential service: bcrypt password hashing
// and issuance/verification of the signed bearer tokens that gate destructive
// organization operations.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned by HashPassword for an empty password.
var ErrEmptyPassword = errors.New("password must not be empty")

// HashPassword hashes a password with bcrypt at the default cost. The result
// is salted and one-way; the plaintext is never stored anywhere.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
// A malformed hash yields false, not an error: to a caller deciding whether
// to grant access, an unverifiable credential and a wrong one are the same.
// bcrypt's comparison is constant-time over the hash output.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
