package repository

import (
	"context"

	"github.com/and161185/doc-issuer/internal/model"
	"github.com/gofrs/uuid/v5"
)

// DocumentRepository is the append-only, hash-chained document log.
type DocumentRepository interface {
	// Append assigns the next block number, links the entry to the previous hash and stores it
	// atomically. The returned document carries BlockNumber, PrevHash, EntryHash and CreatedAt.
	Append(ctx context.Context, d model.Document) (model.Document, error)

	// Get returns a single document by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Document, error)

	// ListByOwner returns documents issued to owner in block order.
	ListByOwner(ctx context.Context, owner model.Address) ([]model.Document, error)

	// LatestBlock returns the current head block number (0 for an empty log).
	LatestBlock(ctx context.Context) (int64, error)
}
