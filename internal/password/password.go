package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashCost is fixed; bumping it only affects newly created hashes.
const hashCost = 10

// Hash returns a salted bcrypt hash of the password.
func Hash(password string) (string, error) {
	sum, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(sum), nil
}

// Verify checks a password against the stored bcrypt hash.
func Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
