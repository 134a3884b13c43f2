package service

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher реализует одностороннее хеширование паролей через bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher создаёт хешер с дефолтной стоимостью bcrypt.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

// Hash возвращает bcrypt-хеш пароля.
func (h *BcryptHasher) Hash(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hasher: %w", err)
	}
	return string(hash), nil
}
