package service

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/doc-issuer/internal/errs"
	"github.com/and161185/doc-issuer/internal/limiter"
	"github.com/and161185/doc-issuer/internal/model"
	"github.com/and161185/doc-issuer/internal/repository"
)

type fakeAccounts struct {
	mu     sync.Mutex
	byAddr map[model.Address]*model.Account

	createErr error
	getErr    error
}

var _ repository.AccountRepository = (*fakeAccounts)(nil)

func (f *fakeAccounts) Create(_ context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.byAddr == nil {
		f.byAddr = map[model.Address]*model.Account{}
	}
	if _, exists := f.byAddr[a.Address]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *a
	f.byAddr[a.Address] = &cpy
	return nil
}

func (f *fakeAccounts) GetByAddress(_ context.Context, addr model.Address) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.byAddr[addr]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *a
	return &c, nil
}

// fakeDocs is an in-memory hash-chained log.
type fakeDocs struct {
	mu        sync.Mutex
	docs      []model.Document
	appendErr error
}

var _ repository.DocumentRepository = (*fakeDocs)(nil)

func (f *fakeDocs) Append(_ context.Context, d model.Document) (model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return model.Document{}, f.appendErr
	}
	prev := []byte{}
	if n := len(f.docs); n > 0 {
		prev = f.docs[n-1].EntryHash
	}
	d.BlockNumber = int64(len(f.docs)) + 1
	d.PrevHash = prev
	d.EntryHash = d.ComputeEntryHash(prev)
	d.CreatedAt = time.Now()
	f.docs = append(f.docs, d)
	return d, nil
}

func (f *fakeDocs) Get(_ context.Context, id uuid.UUID) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == id {
			c := d
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeDocs) ListByOwner(_ context.Context, owner model.Address) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Document
	for _, d := range f.docs {
		if d.Owner == owner {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocs) LatestBlock(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.docs)), nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
	lastIPHash   []byte
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(_ context.Context, _ model.Address, ipHash []byte) (bool, time.Duration, error) {
	l.allowCalls++
	l.lastIPHash = ipHash
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, model.Address, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, model.Address, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}
