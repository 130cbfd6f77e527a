// Package envelope encrypts documents for a single recipient with x25519-xsalsa20-poly1305.
//
// The wire form is the "0x"-prefixed hex of a UTF-8 JSON envelope
// {version, nonce, ephemPublicKey, ciphertext}, binary members base64 encoded.
// Every call uses a fresh ephemeral keypair and nonce, so the issuer cannot decrypt its own output.
package envelope

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/sha3"

	"github.com/and161185/doc-issuer/internal/errs"
	"github.com/and161185/doc-issuer/internal/model"
)

// Version names the only supported scheme.
const Version = "x25519-xsalsa20-poly1305"

const (
	keyLen   = 32
	nonceLen = 24
)

type wireEnvelope struct {
	Version        string `json:"version"`
	Nonce          string `json:"nonce"`
	EphemPublicKey string `json:"ephemPublicKey"`
	Ciphertext     string `json:"ciphertext"`
}

// KeyPair is an x25519 encryption keypair.
type KeyPair struct {
	Public  [keyLen]byte
	Private [keyLen]byte
}

// GenerateKey creates a new random keypair.
func GenerateKey() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Public: *pub, Private: *priv}, nil
}

// KeyPairFromPrivate restores a keypair from its private half.
func KeyPairFromPrivate(priv []byte) (*KeyPair, error) {
	if len(priv) != keyLen {
		return nil, fmt.Errorf("private key: want %d bytes, got %d", keyLen, len(priv))
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	kp := &KeyPair{}
	copy(kp.Private[:], priv)
	copy(kp.Public[:], pub)
	return kp, nil
}

// PublicKeyBase64 is the form registered on the ledger.
func (kp *KeyPair) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(kp.Public[:])
}

// Address derives the account address bound to this keypair.
func (kp *KeyPair) Address() model.Address { return AddressOf(kp.Public[:]) }

// AddressOf returns "0x" + the last 20 bytes of Keccak-256(publicKey).
func AddressOf(publicKey []byte) model.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write(publicKey)
	sum := h.Sum(nil)
	return model.Address("0x" + hex.EncodeToString(sum[len(sum)-20:]))
}

// ParsePublicKey decodes a base64 x25519 public key.
func ParsePublicKey(b64 string) (*[keyLen]byte, error) {
	if strings.TrimSpace(b64) == "" {
		return nil, fmt.Errorf("empty recipient key: %w", errs.ErrEncryption)
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("recipient key not base64: %w", errs.ErrEncryption)
	}
	if len(raw) != keyLen {
		return nil, fmt.Errorf("recipient key: want %d bytes, got %d: %w", keyLen, len(raw), errs.ErrEncryption)
	}
	var k [keyLen]byte
	copy(k[:], raw)
	return &k, nil
}

// Encrypt seals data for the holder of recipientPublicKey (base64).
func Encrypt(recipientPublicKey string, data []byte) (model.HexBlob, error) {
	pub, err := ParsePublicKey(recipientPublicKey)
	if err != nil {
		return "", err
	}
	ephPub, ephPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("ephemeral key: %w", errors.Join(errs.ErrEncryption, err))
	}
	var nonce [nonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("nonce: %w", errors.Join(errs.ErrEncryption, err))
	}
	ct := box.Seal(nil, data, &nonce, pub, ephPriv)

	env, err := json.Marshal(wireEnvelope{
		Version:        Version,
		Nonce:          base64.StdEncoding.EncodeToString(nonce[:]),
		EphemPublicKey: base64.StdEncoding.EncodeToString(ephPub[:]),
		Ciphertext:     base64.StdEncoding.EncodeToString(ct),
	})
	if err != nil {
		return "", errors.Join(errs.ErrEncryption, err)
	}
	return model.HexBlob("0x" + hex.EncodeToString(env)), nil
}

// Decrypt opens a blob produced by Encrypt with the recipient's private key.
func Decrypt(blob model.HexBlob, priv *[keyLen]byte) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(string(blob), "0x"))
	if err != nil {
		return nil, fmt.Errorf("blob not hex: %w", err)
	}
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("unsupported envelope version %q", env.Version)
	}
	nonce, err := decodeFixed(env.Nonce, nonceLen)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	ephPub, err := decodeFixed(env.EphemPublicKey, keyLen)
	if err != nil {
		return nil, fmt.Errorf("ephemeral key: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("ciphertext: %w", err)
	}

	var n [nonceLen]byte
	var ep [keyLen]byte
	copy(n[:], nonce)
	copy(ep[:], ephPub)
	out, ok := box.Open(nil, ct, &n, &ep, priv)
	if !ok {
		return nil, errors.New("decryption failed")
	}
	return out, nil
}

func decodeFixed(s string, n int) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("want %d bytes, got %d", n, len(b))
	}
	return b, nil
}
