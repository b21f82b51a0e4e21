package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// Hasher produces one-way salted password hashes.
type Hasher interface {
	Hash(password string) (string, error)
}

type Argon2idHasher struct {
	Params *argon2id.Params
}

func (h Argon2idHasher) Hash(password string) (string, error) {
	params := h.Params
	if params == nil {
		params = argon2id.DefaultParams
	}
	return argon2id.CreateHash(password, params)
}

// ErrPasswordTooLong is returned by hashers that cannot accept the whole
// password.
var ErrPasswordTooLong = errors.New("password too long")

// BcryptMaxPasswordBytes is the longest input bcrypt hashes without truncation.
const BcryptMaxPasswordBytes = 72

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	if len(password) > BcryptMaxPasswordBytes {
		return "", fmt.Errorf("bcrypt: %w", ErrPasswordTooLong)
	}
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// NewHasher picks a hasher by name.
func NewHasher(name string, bcryptCost int) (Hasher, error) {
	switch name {
	case "", "argon2id":
		return Argon2idHasher{}, nil
	case "bcrypt":
		return BcryptHasher{Cost: bcryptCost}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", name)
	}
}

var errUnknownHashFormat = errors.New("unknown password hash format")

// VerifyPassword checks password against an encoded argon2id or bcrypt hash.
// Hashes written by either hasher stay verifiable after the configured hasher
// changes.
func VerifyPassword(password, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return argon2id.ComparePasswordAndHash(password, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	default:
		return false, errUnknownHashFormat
	}
}
