package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/doc-issuer/internal/errs"
	"github.com/and161185/doc-issuer/internal/model"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO accounts (address, pwd_hash, salt_auth, encryption_public_key)
VALUES ($1, $2, $3, $4)`
	_, err := r.db.Pool.Exec(ctx, q, string(a.Address), a.PwdHash, a.SaltAuth, a.EncryptionPublicKey)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByAddress selects an account by address.
func (r *AccountRepo) GetByAddress(ctx context.Context, addr model.Address) (*model.Account, error) {
	const q = `
SELECT address, pwd_hash, salt_auth, encryption_public_key, created_at
FROM accounts WHERE address=$1`
	var (
		a     model.Account
		addrS string
	)
	err := r.db.Pool.QueryRow(ctx, q, string(addr)).
		Scan(&addrS, &a.PwdHash, &a.SaltAuth, &a.EncryptionPublicKey, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	a.Address = model.Address(addrS)
	return &a, nil
}
