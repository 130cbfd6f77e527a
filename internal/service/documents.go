package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/doc-issuer/internal/errs"
	"github.com/and161185/doc-issuer/internal/events"
	"github.com/and161185/doc-issuer/internal/model"
	"github.com/and161185/doc-issuer/internal/repository"
)

// DocumentService defines the ledger's document operations.
type DocumentService interface {
	// Issue appends the request to the document log and announces it to subscribers.
	Issue(ctx context.Context, issuer model.Address, req model.IssuanceRequest) (model.TxReceipt, error)
	// Owned returns the documents issued to owner in block order.
	Owned(ctx context.Context, owner model.Address) ([]model.Document, error)
	// Document returns one document visible to caller as its owner or issuer.
	Document(ctx context.Context, caller model.Address, id uuid.UUID) (model.Document, error)
	// Subscribe registers for events published from now on.
	Subscribe(filter model.EventFilter) *events.Subscriber
}

// DocumentServiceImpl is the default DocumentService.
type DocumentServiceImpl struct {
	docs     repository.DocumentRepository
	accounts repository.AccountRepository
	hub      *events.Hub
	log      *zap.Logger
	newID    func() (uuid.UUID, error)
}

// NewDocumentService constructs DocumentService.
func NewDocumentService(docs repository.DocumentRepository, accounts repository.AccountRepository, hub *events.Hub, log *zap.Logger) *DocumentServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentServiceImpl{docs: docs, accounts: accounts, hub: hub, log: log, newID: uuid.NewV4}
}

// Issue validates req, checks the owner is a registered account and appends a new block.
// The event is published only after the append has committed.
func (s *DocumentServiceImpl) Issue(ctx context.Context, issuer model.Address, req model.IssuanceRequest) (model.TxReceipt, error) {
	if issuer == "" {
		return model.TxReceipt{}, errs.ErrUnauthorized
	}
	if req.IssuerAddress != "" && !req.IssuerAddress.Equal(issuer) {
		return model.TxReceipt{}, fmt.Errorf("issuer mismatch: %w", errs.ErrUnauthorized)
	}
	if err := validateRequest(req); err != nil {
		return model.TxReceipt{}, err
	}
	if _, err := s.accounts.GetByAddress(ctx, req.OwnerAddress); err != nil {
		return model.TxReceipt{}, fmt.Errorf("owner %s: %w", req.OwnerAddress, err)
	}

	id, err := s.newID()
	if err != nil {
		return model.TxReceipt{}, err
	}
	d, err := s.docs.Append(ctx, model.Document{
		ID:                id,
		Issuer:            issuer,
		Owner:             req.OwnerAddress,
		Name:              req.DocumentName,
		IssuedAt:          req.IssuedAt,
		EncryptedDocument: req.EncryptedDocument,
		Template:          req.Template,
	})
	if err != nil {
		return model.TxReceipt{}, err
	}

	n := s.hub.Publish(model.IssuanceEvent{
		Issuer:       d.Issuer,
		Owner:        d.Owner,
		DocumentID:   d.ID,
		DocumentName: d.Name,
		IssuedAt:     d.IssuedAt,
		BlockNumber:  d.BlockNumber,
		TxHash:       d.TxHash(),
	})
	s.log.Info("document issued",
		zap.String("issuer", string(d.Issuer)),
		zap.Int64("block", d.BlockNumber),
		zap.Int("subscribers", n),
	)
	return model.TxReceipt{TxHash: d.TxHash(), BlockNumber: d.BlockNumber, DocumentID: d.ID}, nil
}

// Owned returns the owner's documents.
func (s *DocumentServiceImpl) Owned(ctx context.Context, owner model.Address) ([]model.Document, error) {
	if owner == "" {
		return nil, errs.ErrUnauthorized
	}
	return s.docs.ListByOwner(ctx, owner)
}

// Document fetches id for caller. Documents the caller neither owns nor issued
// are reported as not found. A stored entry that no longer matches its hash is an error.
func (s *DocumentServiceImpl) Document(ctx context.Context, caller model.Address, id uuid.UUID) (model.Document, error) {
	if caller == "" {
		return model.Document{}, errs.ErrUnauthorized
	}
	d, err := s.docs.Get(ctx, id)
	if err != nil {
		return model.Document{}, err
	}
	if !d.Owner.Equal(caller) && !d.Issuer.Equal(caller) {
		return model.Document{}, fmt.Errorf("document %s: %w", id, errs.ErrNotFound)
	}
	if !d.Verify() {
		s.log.Error("entry hash mismatch", zap.String("document", id.String()), zap.Int64("block", d.BlockNumber))
		return model.Document{}, fmt.Errorf("document %s: entry hash mismatch", id)
	}
	return *d, nil
}

// Subscribe registers a live subscriber on the hub.
func (s *DocumentServiceImpl) Subscribe(filter model.EventFilter) *events.Subscriber {
	return s.hub.Subscribe(filter)
}

func validateRequest(req model.IssuanceRequest) error {
	if req.OwnerAddress == "" {
		return fmt.Errorf("owner: %w", errs.ErrInvalidArgument)
	}
	if req.DocumentName == "" {
		return fmt.Errorf("document name: %w", errs.ErrInvalidArgument)
	}
	blob := string(req.EncryptedDocument)
	if !strings.HasPrefix(blob, "0x") || len(blob) == 2 {
		return fmt.Errorf("encrypted document: %w", errs.ErrInvalidArgument)
	}
	if _, err := hex.DecodeString(blob[2:]); err != nil {
		return fmt.Errorf("encrypted document: %w", errs.ErrInvalidArgument)
	}
	var tmpl []model.TemplateEntry
	if err := json.Unmarshal([]byte(req.Template), &tmpl); err != nil || len(tmpl) == 0 {
		return fmt.Errorf("template: %w", errs.ErrInvalidArgument)
	}
	return nil
}
