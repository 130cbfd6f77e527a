// Package crypto holds the Argon2id password primitives shared by ledger logins and local key files.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Params are Argon2id cost settings.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultParams: 3 passes over 64 MiB, single lane.
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Threads: 1}

const (
	// SaltLen is the size of every salt handed out by NewSalt.
	SaltLen = 16
	// HashLen is the length of stored password hashes.
	HashLen = 32
)

// Key stretches secret with salt into n bytes.
func (p Params) Key(secret, salt []byte, n uint32) []byte {
	return argon2.IDKey(secret, salt, p.Time, p.Memory, p.Threads, n)
}

// NewSalt returns SaltLen random bytes.
func NewSalt() ([]byte, error) {
	b := make([]byte, SaltLen)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// HashPassword is the stored form of an account password.
func HashPassword(password, salt []byte) []byte {
	return DefaultParams.Key(password, salt, HashLen)
}

// VerifyPassword compares in constant time. An empty stored hash never matches.
func VerifyPassword(password, salt, expected []byte) bool {
	if len(expected) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(HashPassword(password, salt), expected) == 1
}
