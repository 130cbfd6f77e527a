package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/and161185/doc-issuer/internal/crypto"
	"github.com/and161185/doc-issuer/internal/crypto/envelope"
	"github.com/and161185/doc-issuer/internal/errs"
	"github.com/and161185/doc-issuer/internal/limiter"
	"github.com/and161185/doc-issuer/internal/model"
)

func newAccount(t *testing.T, password string) (*model.Account, *envelope.KeyPair) {
	t.Helper()
	kp, err := envelope.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	salt, _ := pkgcrypto.NewSalt()
	return &model.Account{
		Address:             kp.Address(),
		SaltAuth:            salt,
		PwdHash:             pkgcrypto.HashPassword([]byte(password), salt),
		EncryptionPublicKey: kp.PublicKeyBase64(),
	}, kp
}

func TestAccounts_Register(t *testing.T) {
	t.Parallel()
	accts := &fakeAccounts{}
	s := NewAccountService(accts, []byte("k"), time.Minute, &fakeLimiter{})
	ctx := context.Background()

	if _, err := s.Register(ctx, "", ""); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument on empty input, got %v", err)
	}
	if _, err := s.Register(ctx, "not-a-key", "pwd"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument on malformed key, got %v", err)
	}

	kp, _ := envelope.GenerateKey()
	addr, err := s.Register(ctx, kp.PublicKeyBase64(), "pwd")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if addr != kp.Address() {
		t.Fatalf("address must derive from the key: %s vs %s", addr, kp.Address())
	}
	stored, _ := accts.GetByAddress(ctx, addr)
	if stored.EncryptionPublicKey != kp.PublicKeyBase64() || len(stored.SaltAuth) != pkgcrypto.SaltLen {
		t.Fatalf("bad stored account: %+v", stored)
	}
	if !pkgcrypto.VerifyPassword([]byte("pwd"), stored.SaltAuth, stored.PwdHash) {
		t.Fatalf("password hash does not verify")
	}

	if _, err := s.Register(ctx, kp.PublicKeyBase64(), "pwd2"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists on duplicate key, got %v", err)
	}

	accts.createErr = errors.New("boom")
	other, _ := envelope.GenerateKey()
	if _, err := s.Register(ctx, other.PublicKeyBase64(), "pwd"); err == nil {
		t.Fatalf("want propagated repo error")
	}
}

func TestAccounts_LoginWithIP_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()
	a, _ := newAccount(t, "correct")
	accts := &fakeAccounts{byAddr: map[model.Address]*model.Account{a.Address: a}}
	lim := &fakeLimiter{allowOK: true}
	s := NewAccountService(accts, []byte("secret"), 2*time.Minute, lim)
	ctx := context.Background()

	lim.allowErr = errors.New("lim-err")
	if _, err := s.LoginWithIP(ctx, a.Address, "correct", "1.2.3.4:1"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	lim.allowErr = nil

	lim.allowOK = false
	if _, err := s.LoginWithIP(ctx, a.Address, "correct", "1.2.3.4:1"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	lim.allowOK = true

	unknown := model.Address("0x9999999999999999999999999999999999999999")
	if _, err := s.LoginWithIP(ctx, unknown, "x", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on missing account, got %v", err)
	}

	lim.failBlocked = true
	if _, err := s.LoginWithIP(ctx, a.Address, "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited on blocked after failure, got %v", err)
	}
	lim.failBlocked = false

	if _, err := s.LoginWithIP(ctx, a.Address, "wrong", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong password, got %v", err)
	}

	tok, err := s.LoginWithIP(ctx, a.Address, "correct", "127.0.0.1:123")
	if err != nil {
		t.Fatalf("LoginWithIP success: %v", err)
	}
	if tok.AccessToken == "" || tok.ExpiresAt.Before(time.Now()) {
		t.Fatalf("bad token: %+v", tok)
	}
	if lim.successCalls == 0 {
		t.Fatalf("expected Success() to be called")
	}
	if string(lim.lastIPHash) != string(limiter.HashIP("127.0.0.1:999")) {
		t.Fatalf("limiter must be keyed by host, not host:port")
	}

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(tok.AccessToken, &claims, func(*jwt.Token) (any, error) { return []byte("secret"), nil })
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != string(a.Address) {
		t.Fatalf("subject must be the address, got %q", claims.Subject)
	}
}

func TestAccounts_EncryptionPublicKey(t *testing.T) {
	t.Parallel()
	a, kp := newAccount(t, "p")
	noKey := &model.Account{Address: "0x3333333333333333333333333333333333333333"}
	accts := &fakeAccounts{byAddr: map[model.Address]*model.Account{a.Address: a, noKey.Address: noKey}}
	s := NewAccountService(accts, []byte("k"), time.Minute, &fakeLimiter{})
	ctx := context.Background()

	if _, err := s.EncryptionPublicKey(ctx, "0xnothex"); !errors.Is(err, errs.ErrInvalidAddress) {
		t.Fatalf("want ErrInvalidAddress, got %v", err)
	}
	if _, err := s.EncryptionPublicKey(ctx, "0x4444444444444444444444444444444444444444"); !errors.Is(err, errs.ErrNoEncryptionKey) {
		t.Fatalf("want ErrNoEncryptionKey for unknown account, got %v", err)
	}
	if _, err := s.EncryptionPublicKey(ctx, string(noKey.Address)); !errors.Is(err, errs.ErrNoEncryptionKey) {
		t.Fatalf("want ErrNoEncryptionKey for keyless account, got %v", err)
	}

	upper := "0x" + strings.ToUpper(string(a.Address)[2:])
	got, err := s.EncryptionPublicKey(ctx, upper)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != kp.PublicKeyBase64() {
		t.Fatalf("key mismatch")
	}

	accts.getErr = errors.New("db down")
	if _, err := s.EncryptionPublicKey(ctx, string(a.Address)); err == nil || errors.Is(err, errs.ErrNoEncryptionKey) {
		t.Fatalf("want storage error propagated, got %v", err)
	}
}
