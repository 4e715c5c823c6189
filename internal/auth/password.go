package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest accepted agent password.
const MinPasswordLength = 8

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

var (
	ErrPasswordTooShort = errors.New("must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("must be at most 72 bytes")
)

// Passwords hashes and verifies agent passwords.
type Passwords struct {
	cost  int
	decoy []byte
}

// NewPasswords clamps cost into the range bcrypt accepts.
func NewPasswords(cost int) *Passwords {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	decoy, _ := bcrypt.GenerateFromPassword([]byte("decoy-password"), cost)
	return &Passwords{cost: cost, decoy: decoy}
}

// CheckPolicy reports why a candidate password is unacceptable, or nil.
func CheckPolicy(password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return ErrPasswordTooShort
	case len(password) > maxPasswordBytes:
		return ErrPasswordTooLong
	}
	return nil
}

// Hash hashes a plaintext password.
func (p *Passwords) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare verifies a password against its hashed value.
func (p *Passwords) Compare(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// CompareDecoy spends the same time as Compare for callers with no account, so
// login latency does not reveal which emails are registered.
func (p *Passwords) CompareDecoy(plain string) {
	_ = bcrypt.CompareHashAndPassword(p.decoy, []byte(plain))
}
