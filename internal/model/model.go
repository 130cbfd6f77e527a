// Package model defines domain entities shared by the issuer client and the ledger node.
package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/doc-issuer/internal/errs"
)

// Address identifies a ledger account: "0x" followed by 40 hex digits.
type Address string

// ParseAddress validates s and returns it in canonical lowercase form.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != 42 || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return "", errs.ErrInvalidAddress
	}
	if _, err := hex.DecodeString(s[2:]); err != nil {
		return "", errs.ErrInvalidAddress
	}
	return Address("0x" + strings.ToLower(s[2:])), nil
}

// String implements fmt.Stringer.
func (a Address) String() string { return string(a) }

// Equal compares addresses case-insensitively.
func (a Address) Equal(b Address) bool { return strings.EqualFold(string(a), string(b)) }

// Field is one label/value pair of a composed document. Fields are unique only by position.
type Field struct {
	Label string `json:"fieldLabel"`
	Value string `json:"fieldValue"`
}

// TemplateEntry is the public shadow of a Field: the label without its value.
type TemplateEntry struct {
	Label string `json:"label"`
}

// HexBlob is a "0x"-prefixed hex string carrying an opaque ciphertext envelope.
type HexBlob string

// IssuanceRequest is everything sent in one issue transaction.
type IssuanceRequest struct {
	OwnerAddress      Address
	DocumentName      string
	IssuedAt          int64 // unix seconds
	EncryptedDocument HexBlob
	Template          string // JSON of []TemplateEntry
	IssuerAddress     Address
}

// TxReceipt acknowledges an accepted issue transaction.
type TxReceipt struct {
	TxHash      string
	BlockNumber int64
	DocumentID  uuid.UUID
}

// IssuanceEvent is emitted by the ledger after a document has been anchored.
type IssuanceEvent struct {
	Issuer       Address
	Owner        Address
	DocumentID   uuid.UUID
	DocumentName string
	IssuedAt     int64
	BlockNumber  int64
	TxHash       string
}

// EventFilter selects issuance events. Empty fields match anything.
type EventFilter struct {
	Issuer Address
}

// Match reports whether ev passes the filter.
func (f EventFilter) Match(ev IssuanceEvent) bool {
	return f.Issuer == "" || f.Issuer.Equal(ev.Issuer)
}

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Account is a ledger account. Passwords are never stored in plaintext.
type Account struct {
	Address             Address
	PwdHash             []byte // Argon2id(password, SaltAuth)
	SaltAuth            []byte
	EncryptionPublicKey string // base64 x25519 public key
	CreatedAt           time.Time
}

// Document is one entry of the append-only, hash-chained document log.
type Document struct {
	ID                uuid.UUID
	BlockNumber       int64
	PrevHash          []byte
	EntryHash         []byte
	Issuer            Address
	Owner             Address
	Name              string
	IssuedAt          int64
	EncryptedDocument HexBlob
	Template          string
	CreatedAt         time.Time
}

// ComputeEntryHash chains d onto prev: sha256(prev || block || id || issuer || owner || name ||
// issuedAt || encryptedDocument || template), variable-length members length-prefixed.
func (d *Document) ComputeEntryHash(prev []byte) []byte {
	h := sha256.New()
	h.Write(prev)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(d.BlockNumber))
	h.Write(n[:])
	h.Write(d.ID.Bytes())
	for _, s := range []string{string(d.Issuer), string(d.Owner), d.Name} {
		writeLP(h, s)
	}
	binary.BigEndian.PutUint64(n[:], uint64(d.IssuedAt))
	h.Write(n[:])
	writeLP(h, string(d.EncryptedDocument))
	writeLP(h, d.Template)
	return h.Sum(nil)
}

// Verify reports whether the stored EntryHash matches the document's own fields and PrevHash.
func (d *Document) Verify() bool {
	return len(d.EntryHash) > 0 && bytes.Equal(d.ComputeEntryHash(d.PrevHash), d.EntryHash)
}

// TxHash is the hex form of the entry hash returned to clients.
func (d *Document) TxHash() string { return "0x" + hex.EncodeToString(d.EntryHash) }

func writeLP(w io.Writer, s string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	_, _ = w.Write(n[:])
	_, _ = io.WriteString(w, s)
}
