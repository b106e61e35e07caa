package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently truncates input beyond 72 bytes; reject outright so two
// long passwords sharing a prefix can never verify against the same hash.
const maxPasswordBytes = 72

var (
	ErrPasswordEmpty   = errors.New("password is empty")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// HashPassword produces the bcrypt hash stored on the user record.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrPasswordEmpty
	}
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a login attempt against the stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
