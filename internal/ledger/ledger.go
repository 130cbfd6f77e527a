// Package ledger defines the contract handle the issuer client talks to.
package ledger

import (
	"context"

	"github.com/and161185/doc-issuer/internal/model"
)

// Contract is the ledger surface consumed by issuance and confirmation.
type Contract interface {
	// GetEncryptionPublicKey returns the base64 key registered for owner. Read-only.
	GetEncryptionPublicKey(ctx context.Context, owner model.Address) (string, error)
	// IssueDocument sends one issue transaction authorized by the caller's account.
	IssueDocument(ctx context.Context, req model.IssuanceRequest) (model.TxReceipt, error)
	// SubscribeIssued streams issuance events matching filter, starting from the latest block.
	SubscribeIssued(ctx context.Context, filter model.EventFilter) (Subscription, error)
}

// Subscription is a live event stream. Err yields at most one value, after which
// Events is closed.
type Subscription interface {
	Events() <-chan model.IssuanceEvent
	Err() <-chan error
	Unsubscribe()
}
