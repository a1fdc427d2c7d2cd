package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// PasswordMatches hides the bcrypt mismatch error from callers that only need a yes/no.
func PasswordMatches(hash, plain string) (bool, error) {
	err := CheckPassword(hash, plain)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}

// dummyHash lets login spend bcrypt time even for unknown emails.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("clinicfinder-placeholder"), bcrypt.DefaultCost)

func BurnPasswordCheck(plain string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}
