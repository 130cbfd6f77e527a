package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/doc-issuer/internal/errs"
	"github.com/and161185/doc-issuer/internal/model"
)

// appendLockKey serializes appends across connections (pg_advisory_xact_lock).
const appendLockKey int64 = 0x646f636c6f67

// DocumentRepo implements DocumentRepository using PostgreSQL.
type DocumentRepo struct{ db *DB }

// NewDocumentRepo constructs a document repository.
func NewDocumentRepo(db *DB) *DocumentRepo { return &DocumentRepo{db: db} }

// Append links d to the current head and inserts it in one transaction.
func (r *DocumentRepo) Append(ctx context.Context, d model.Document) (out model.Document, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Document{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const lock = `SELECT pg_advisory_xact_lock($1)`
	const head = `SELECT block_number, entry_hash FROM documents ORDER BY block_number DESC LIMIT 1`
	const ins = `
INSERT INTO documents (id, block_number, prev_hash, entry_hash, issuer, owner, name, issued_at, encrypted_document, template)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING created_at`

	if _, err = tx.Exec(ctx, lock, appendLockKey); err != nil {
		return model.Document{}, err
	}

	var (
		prevBlock int64
		prevHash  []byte
	)
	switch scanErr := tx.QueryRow(ctx, head).Scan(&prevBlock, &prevHash); {
	case scanErr == nil:
	case errors.Is(scanErr, pgx.ErrNoRows):
		prevBlock, prevHash = 0, []byte{}
	default:
		return model.Document{}, scanErr
	}

	d.BlockNumber = prevBlock + 1
	d.PrevHash = prevHash
	d.EntryHash = d.ComputeEntryHash(prevHash)

	err = tx.QueryRow(ctx, ins,
		d.ID, d.BlockNumber, d.PrevHash, d.EntryHash, string(d.Issuer), string(d.Owner),
		d.Name, d.IssuedAt, string(d.EncryptedDocument), d.Template,
	).Scan(&d.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Document{}, fmt.Errorf("block %d: %w", d.BlockNumber, errs.ErrVersionConflict)
		}
		return model.Document{}, err
	}
	return d, nil
}

const docColumns = `id, block_number, prev_hash, entry_hash, issuer, owner, name, issued_at, encrypted_document, template, created_at`

func scanDocument(row pgx.Row) (model.Document, error) {
	var (
		d                   model.Document
		issuer, owner, blob string
	)
	err := row.Scan(&d.ID, &d.BlockNumber, &d.PrevHash, &d.EntryHash, &issuer, &owner,
		&d.Name, &d.IssuedAt, &blob, &d.Template, &d.CreatedAt)
	d.Issuer, d.Owner, d.EncryptedDocument = model.Address(issuer), model.Address(owner), model.HexBlob(blob)
	return d, err
}

// Get returns a single document by id.
func (r *DocumentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	q := `SELECT ` + docColumns + ` FROM documents WHERE id=$1`
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListByOwner returns the owner's documents ordered by block number.
func (r *DocumentRepo) ListByOwner(ctx context.Context, owner model.Address) ([]model.Document, error) {
	q := `SELECT ` + docColumns + ` FROM documents WHERE owner=$1 ORDER BY block_number ASC`
	rows, err := r.db.Pool.Query(ctx, q, string(owner))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LatestBlock returns the head block number.
func (r *DocumentRepo) LatestBlock(ctx context.Context) (int64, error) {
	const q = `SELECT COALESCE(MAX(block_number),0) FROM documents`
	var v int64
	if err := r.db.Pool.QueryRow(ctx, q).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}
