// Package keystore keeps an account's x25519 private key on disk, wrapped by a password-derived key.
package keystore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/and161185/doc-issuer/internal/crypto"
	"github.com/and161185/doc-issuer/internal/crypto/envelope"
	"github.com/and161185/doc-issuer/internal/model"
)

// KEKLen is the XChaCha20-Poly1305 key size.
const KEKLen = chacha20poly1305.KeySize

// File is the on-disk form. The wrapped key is bound to Address via AAD.
type File struct {
	Address    model.Address `json:"address"`
	PublicKey  string        `json:"public_key"`
	KEKSalt    []byte        `json:"kek_salt"`
	WrappedKey []byte        `json:"wrapped_key"`
}

// DeriveKEK derives a KEK from password and kekSalt using Argon2id.
func DeriveKEK(password, kekSalt []byte) []byte {
	return crypto.DefaultParams.Key(password, kekSalt, KEKLen)
}

// Wrap encrypts key with kek using XChaCha20-Poly1305; the random nonce is prepended.
func Wrap(kek, key, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(key)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, key, aad), nil
}

// Unwrap reverses Wrap.
func Unwrap(kek, wrapped, aad []byte) ([]byte, error) {
	if len(wrapped) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("wrapped too short")
	}
	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, err
	}
	nonce := wrapped[:chacha20poly1305.NonceSizeX]
	return aead.Open(nil, nonce, wrapped[chacha20poly1305.NonceSizeX:], aad)
}

// Seal wraps kp's private key under password.
func Seal(kp *envelope.KeyPair, password []byte) (*File, error) {
	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	addr := kp.Address()
	wrapped, err := Wrap(DeriveKEK(password, salt), kp.Private[:], []byte(addr))
	if err != nil {
		return nil, err
	}
	return &File{Address: addr, PublicKey: kp.PublicKeyBase64(), KEKSalt: salt, WrappedKey: wrapped}, nil
}

// Open unwraps the private key with password and checks it matches the recorded address.
func (f *File) Open(password []byte) (*envelope.KeyPair, error) {
	priv, err := Unwrap(DeriveKEK(password, f.KEKSalt), f.WrappedKey, []byte(f.Address))
	if err != nil {
		return nil, fmt.Errorf("unwrap key (wrong password?): %w", err)
	}
	kp, err := envelope.KeyPairFromPrivate(priv)
	if err != nil {
		return nil, err
	}
	if kp.Address() != f.Address {
		return nil, errors.New("key does not match address")
	}
	return kp, nil
}

// Save writes f to path with owner-only permissions.
func Save(path string, f *File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// Load reads a key file written by Save.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return &f, nil
}
