// Package service contains the ledger node's application services: accounts and documents.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/and161185/doc-issuer/internal/crypto"
	"github.com/and161185/doc-issuer/internal/crypto/envelope"
	"github.com/and161185/doc-issuer/internal/errs"
	"github.com/and161185/doc-issuer/internal/limiter"
	"github.com/and161185/doc-issuer/internal/model"
	"github.com/and161185/doc-issuer/internal/repository"
)

// AccountService defines registration, login and public key lookup.
type AccountService interface {
	// Register creates an account whose address is derived from its encryption public key.
	Register(ctx context.Context, encryptionPublicKey, password string) (model.Address, error)
	// LoginWithIP applies rate-limiting and authenticates the account.
	LoginWithIP(ctx context.Context, addr model.Address, password, ip string) (model.Tokens, error)
	// EncryptionPublicKey returns the base64 key registered for owner.
	EncryptionPublicKey(ctx context.Context, owner string) (string, error)
}

// AccountServiceImpl is the default AccountService.
type AccountServiceImpl struct {
	accounts  repository.AccountRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	now       func() time.Time
}

// NewAccountService constructs AccountService with required dependencies.
func NewAccountService(accounts repository.AccountRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AccountServiceImpl {
	return &AccountServiceImpl{accounts: accounts, signKey: signKey, accessTTL: accessTTL, lim: lim, now: time.Now}
}

// Register validates the key, derives the address and stores the account with a per-account salt.
func (s *AccountServiceImpl) Register(ctx context.Context, encryptionPublicKey, password string) (model.Address, error) {
	if encryptionPublicKey == "" || password == "" {
		return "", fmt.Errorf("empty key/password: %w", errs.ErrInvalidArgument)
	}
	pub, err := envelope.ParsePublicKey(encryptionPublicKey)
	if err != nil {
		return "", fmt.Errorf("public key: %w", errs.ErrInvalidArgument)
	}
	salt, err := pkgcrypto.NewSalt()
	if err != nil {
		return "", err
	}

	a := &model.Account{
		Address:             envelope.AddressOf(pub[:]),
		PwdHash:             pkgcrypto.HashPassword([]byte(password), salt),
		SaltAuth:            salt,
		EncryptionPublicKey: encryptionPublicKey,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return "", err
	}
	return a.Address, nil
}

// LoginWithIP authenticates with rate limiting by (address, ip).
func (s *AccountServiceImpl) LoginWithIP(ctx context.Context, addr model.Address, password, ip string) (model.Tokens, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, addr, ipHash)
	if err != nil {
		return model.Tokens{}, err
	}
	if !allowed {
		return model.Tokens{}, errs.ErrRateLimited
	}

	a, err := s.accounts.GetByAddress(ctx, addr)
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), a.SaltAuth, a.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, addr, ipHash); ferr == nil && blocked {
			return model.Tokens{}, errs.ErrRateLimited
		}
		// unknown account and wrong password look the same
		return model.Tokens{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, addr, ipHash)

	access, exp, err := s.issueAccessToken(a.Address)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AccountServiceImpl) issueAccessToken(addr model.Address) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   string(addr),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// EncryptionPublicKey is a read-only lookup; it never changes ledger state.
func (s *AccountServiceImpl) EncryptionPublicKey(ctx context.Context, owner string) (string, error) {
	addr, err := model.ParseAddress(owner)
	if err != nil {
		return "", err
	}
	a, err := s.accounts.GetByAddress(ctx, addr)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", addr, errs.ErrNoEncryptionKey)
		}
		return "", err
	}
	if a.EncryptionPublicKey == "" {
		return "", fmt.Errorf("%s: %w", addr, errs.ErrNoEncryptionKey)
	}
	return a.EncryptionPublicKey, nil
}
