// Package convert maps domain models to the well-known protobuf messages carried by the ledger API.
package convert

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	u "github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/doc-issuer/internal/model"
)

// Struct keys used on the wire.
const (
	KeyOwner             = "owner_address"
	KeyIssuer            = "issuer_address"
	KeyName              = "document_name"
	KeyIssuedAt          = "issued_at"
	KeyEncryptedDocument = "encrypted_document"
	KeyTemplate          = "template"
	KeyTxHash            = "tx_hash"
	KeyBlockNumber       = "block_number"
	KeyDocumentID        = "document_id"
	KeyPrevHash          = "prev_hash"
	KeyCreatedAt         = "created_at"
	KeyAddress           = "address"
	KeyPassword          = "password"
	KeyEncryptionKey     = "encryption_public_key"
	KeyAccessToken       = "access_token"
	KeyExpiresAt         = "expires_at"
)

// --- helpers ---

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// num reads an integral number. structpb numbers are float64, so values beyond 2^53 are rejected.
func num(s *structpb.Struct, key string) (int64, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, nil
	}
	if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
		return 0, fmt.Errorf("%s: not a number", key)
	}
	f := v.GetNumberValue()
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("%s: not an integer", key)
	}
	return int64(f), nil
}

func optAddress(s string) (model.Address, error) {
	if s == "" {
		return "", nil
	}
	return model.ParseAddress(s)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// --- IssuanceRequest (client -> server) ---

// ToProtoIssuanceRequest encodes an issue transaction.
func ToProtoIssuanceRequest(r model.IssuanceRequest) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyOwner:             structpb.NewStringValue(string(r.OwnerAddress)),
		KeyIssuer:            structpb.NewStringValue(string(r.IssuerAddress)),
		KeyName:              structpb.NewStringValue(r.DocumentName),
		KeyIssuedAt:          structpb.NewNumberValue(float64(r.IssuedAt)),
		KeyEncryptedDocument: structpb.NewStringValue(string(r.EncryptedDocument)),
		KeyTemplate:          structpb.NewStringValue(r.Template),
	}}
}

// FromProtoIssuanceRequest decodes an issue transaction. Addresses are canonicalized;
// an absent issuer stays empty.
func FromProtoIssuanceRequest(s *structpb.Struct) (model.IssuanceRequest, error) {
	if s == nil {
		return model.IssuanceRequest{}, fmt.Errorf("nil request")
	}
	owner, err := model.ParseAddress(str(s, KeyOwner))
	if err != nil {
		return model.IssuanceRequest{}, fmt.Errorf("owner: %w", err)
	}
	issuer, err := optAddress(str(s, KeyIssuer))
	if err != nil {
		return model.IssuanceRequest{}, fmt.Errorf("issuer: %w", err)
	}
	issuedAt, err := num(s, KeyIssuedAt)
	if err != nil {
		return model.IssuanceRequest{}, err
	}
	return model.IssuanceRequest{
		OwnerAddress:      owner,
		IssuerAddress:     issuer,
		DocumentName:      str(s, KeyName),
		IssuedAt:          issuedAt,
		EncryptedDocument: model.HexBlob(str(s, KeyEncryptedDocument)),
		Template:          str(s, KeyTemplate),
	}, nil
}

// --- TxReceipt (server -> client) ---

// ToProtoReceipt encodes a transaction receipt.
func ToProtoReceipt(r model.TxReceipt) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyTxHash:      structpb.NewStringValue(r.TxHash),
		KeyBlockNumber: structpb.NewNumberValue(float64(r.BlockNumber)),
		KeyDocumentID:  structpb.NewStringValue(r.DocumentID.String()),
	}}
}

// FromProtoReceipt decodes a transaction receipt.
func FromProtoReceipt(s *structpb.Struct) (model.TxReceipt, error) {
	if s == nil {
		return model.TxReceipt{}, fmt.Errorf("nil receipt")
	}
	block, err := num(s, KeyBlockNumber)
	if err != nil {
		return model.TxReceipt{}, err
	}
	id, err := u.FromString(str(s, KeyDocumentID))
	if err != nil {
		return model.TxReceipt{}, fmt.Errorf("invalid id: %w", err)
	}
	return model.TxReceipt{TxHash: str(s, KeyTxHash), BlockNumber: block, DocumentID: id}, nil
}

// --- IssuanceEvent (server -> client stream) ---

// ToProtoEvent encodes an issuance event.
func ToProtoEvent(ev model.IssuanceEvent) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyIssuer:      structpb.NewStringValue(string(ev.Issuer)),
		KeyOwner:       structpb.NewStringValue(string(ev.Owner)),
		KeyDocumentID:  structpb.NewStringValue(ev.DocumentID.String()),
		KeyName:        structpb.NewStringValue(ev.DocumentName),
		KeyIssuedAt:    structpb.NewNumberValue(float64(ev.IssuedAt)),
		KeyBlockNumber: structpb.NewNumberValue(float64(ev.BlockNumber)),
		KeyTxHash:      structpb.NewStringValue(ev.TxHash),
	}}
}

// FromProtoEvent decodes an issuance event.
func FromProtoEvent(s *structpb.Struct) (model.IssuanceEvent, error) {
	if s == nil {
		return model.IssuanceEvent{}, fmt.Errorf("nil event")
	}
	issuer, err := model.ParseAddress(str(s, KeyIssuer))
	if err != nil {
		return model.IssuanceEvent{}, fmt.Errorf("issuer: %w", err)
	}
	owner, err := model.ParseAddress(str(s, KeyOwner))
	if err != nil {
		return model.IssuanceEvent{}, fmt.Errorf("owner: %w", err)
	}
	id, err := u.FromString(str(s, KeyDocumentID))
	if err != nil {
		return model.IssuanceEvent{}, fmt.Errorf("invalid id: %w", err)
	}
	issuedAt, err := num(s, KeyIssuedAt)
	if err != nil {
		return model.IssuanceEvent{}, err
	}
	block, err := num(s, KeyBlockNumber)
	if err != nil {
		return model.IssuanceEvent{}, err
	}
	return model.IssuanceEvent{
		Issuer:       issuer,
		Owner:        owner,
		DocumentID:   id,
		DocumentName: str(s, KeyName),
		IssuedAt:     issuedAt,
		BlockNumber:  block,
		TxHash:       str(s, KeyTxHash),
	}, nil
}

// --- EventFilter ---

// ToProtoFilter encodes a subscription filter.
func ToProtoFilter(f model.EventFilter) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyIssuer: structpb.NewStringValue(string(f.Issuer)),
	}}
}

// FromProtoFilter decodes a subscription filter. A nil or empty struct matches everything.
func FromProtoFilter(s *structpb.Struct) (model.EventFilter, error) {
	issuer, err := optAddress(str(s, KeyIssuer))
	if err != nil {
		return model.EventFilter{}, fmt.Errorf("issuer: %w", err)
	}
	return model.EventFilter{Issuer: issuer}, nil
}

// --- Document (server -> owner) ---

// ToProtoDocument encodes a stored document; hashes are base64.
func ToProtoDocument(d model.Document) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyDocumentID:        structpb.NewStringValue(d.ID.String()),
		KeyBlockNumber:       structpb.NewNumberValue(float64(d.BlockNumber)),
		KeyPrevHash:          structpb.NewStringValue(base64.StdEncoding.EncodeToString(d.PrevHash)),
		KeyTxHash:            structpb.NewStringValue(d.TxHash()),
		KeyIssuer:            structpb.NewStringValue(string(d.Issuer)),
		KeyOwner:             structpb.NewStringValue(string(d.Owner)),
		KeyName:              structpb.NewStringValue(d.Name),
		KeyIssuedAt:          structpb.NewNumberValue(float64(d.IssuedAt)),
		KeyEncryptedDocument: structpb.NewStringValue(string(d.EncryptedDocument)),
		KeyTemplate:          structpb.NewStringValue(d.Template),
		KeyCreatedAt:         structpb.NewStringValue(ts(d.CreatedAt)),
	}}
}

// FromProtoDocument decodes a stored document. EntryHash is restored from the tx hash.
func FromProtoDocument(s *structpb.Struct) (model.Document, error) {
	if s == nil {
		return model.Document{}, fmt.Errorf("nil document")
	}
	id, err := u.FromString(str(s, KeyDocumentID))
	if err != nil {
		return model.Document{}, fmt.Errorf("invalid id: %w", err)
	}
	block, err := num(s, KeyBlockNumber)
	if err != nil {
		return model.Document{}, err
	}
	issuedAt, err := num(s, KeyIssuedAt)
	if err != nil {
		return model.Document{}, err
	}
	prev, err := base64.StdEncoding.DecodeString(str(s, KeyPrevHash))
	if err != nil {
		return model.Document{}, fmt.Errorf("prev hash: %w", err)
	}
	entry, err := decodeTxHash(str(s, KeyTxHash))
	if err != nil {
		return model.Document{}, err
	}
	created, err := parseTS(str(s, KeyCreatedAt))
	if err != nil {
		return model.Document{}, fmt.Errorf("created at: %w", err)
	}
	return model.Document{
		ID:                id,
		BlockNumber:       block,
		PrevHash:          prev,
		EntryHash:         entry,
		Issuer:            model.Address(str(s, KeyIssuer)),
		Owner:             model.Address(str(s, KeyOwner)),
		Name:              str(s, KeyName),
		IssuedAt:          issuedAt,
		EncryptedDocument: model.HexBlob(str(s, KeyEncryptedDocument)),
		Template:          str(s, KeyTemplate),
		CreatedAt:         created,
	}, nil
}

// ToProtoDocuments encodes a list of documents.
func ToProtoDocuments(ds []model.Document) *structpb.ListValue {
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(ds))}
	for _, d := range ds {
		out.Values = append(out.Values, structpb.NewStructValue(ToProtoDocument(d)))
	}
	return out
}

// FromProtoDocuments decodes a list of documents.
func FromProtoDocuments(l *structpb.ListValue) ([]model.Document, error) {
	out := make([]model.Document, 0, len(l.GetValues()))
	for i, v := range l.GetValues() {
		d, err := FromProtoDocument(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("document[%d]: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// --- Accounts ---

// ToProtoRegister encodes a registration request.
func ToProtoRegister(encryptionPublicKey, password string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyEncryptionKey: structpb.NewStringValue(encryptionPublicKey),
		KeyPassword:      structpb.NewStringValue(password),
	}}
}

// FromProtoRegister decodes a registration request.
func FromProtoRegister(s *structpb.Struct) (encryptionPublicKey, password string) {
	return str(s, KeyEncryptionKey), str(s, KeyPassword)
}

// ToProtoLogin encodes a login request.
func ToProtoLogin(addr model.Address, password string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyAddress:  structpb.NewStringValue(string(addr)),
		KeyPassword: structpb.NewStringValue(password),
	}}
}

// FromProtoLogin decodes a login request.
func FromProtoLogin(s *structpb.Struct) (model.Address, string, error) {
	addr, err := model.ParseAddress(str(s, KeyAddress))
	if err != nil {
		return "", "", err
	}
	return addr, str(s, KeyPassword), nil
}

// ToProtoTokens encodes issued tokens.
func ToProtoTokens(t model.Tokens) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyAccessToken: structpb.NewStringValue(t.AccessToken),
		KeyExpiresAt:   structpb.NewStringValue(ts(t.ExpiresAt)),
	}}
}

// FromProtoTokens decodes issued tokens.
func FromProtoTokens(s *structpb.Struct) (model.Tokens, error) {
	exp, err := parseTS(str(s, KeyExpiresAt))
	if err != nil {
		return model.Tokens{}, fmt.Errorf("expires at: %w", err)
	}
	return model.Tokens{AccessToken: str(s, KeyAccessToken), ExpiresAt: exp}, nil
}

func decodeTxHash(h string) ([]byte, error) {
	if h == "" {
		return nil, nil
	}
	if len(h) < 2 || h[:2] != "0x" {
		return nil, fmt.Errorf("tx hash: missing 0x prefix")
	}
	b, err := hex.DecodeString(h[2:])
	if err != nil {
		return nil, fmt.Errorf("tx hash: %w", err)
	}
	return b, nil
}
