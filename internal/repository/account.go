// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/doc-issuer/internal/model"
)

// AccountRepository stores ledger accounts and their encryption public keys.
type AccountRepository interface {
	// Create inserts a new account; errs.ErrAlreadyExists if the address is taken.
	Create(ctx context.Context, a *model.Account) error
	// GetByAddress loads an account; errs.ErrNotFound if absent.
	GetByAddress(ctx context.Context, addr model.Address) (*model.Account, error)
}
