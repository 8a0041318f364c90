package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"notely/internal/apperr"
)

var ErrPasswordMismatch = errors.New("password mismatch")

// MaxPasswordBytes is the longest input bcrypt will hash. The validator's
// max tag counts characters, so multibyte passwords need this check too.
const MaxPasswordBytes = 72

func checkPasswordBytes(field, password string) error {
	if len(password) > MaxPasswordBytes {
		return apperr.New(apperr.KindValidation,
			fmt.Sprintf("%s must be at most %d bytes long", field, MaxPasswordBytes))
	}
	return nil
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	if err != nil {
		return fmt.Errorf("comparing password: %w", err)
	}
	return nil
}
