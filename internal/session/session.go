// Package session holds the authenticated issuer identity and its ledger handle.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/and161185/doc-issuer/internal/ledger"
	"github.com/and161185/doc-issuer/internal/model"
)

// Connector establishes a contract handle for user, e.g. by dialing the ledger node.
// The returned closer releases it.
type Connector func(ctx context.Context, user model.Address) (ledger.Contract, func() error, error)

// ErrClosed is returned by Init after Close.
var ErrClosed = errors.New("session closed")

// Session is created once per login and passed explicitly to the submitter and listener.
type Session struct {
	user    model.Address
	connect Connector

	mu       sync.Mutex
	contract ledger.Contract
	closer   func() error
	closed   bool
	done     chan struct{}
}

// New returns a session for user. No I/O happens until Init.
func New(user model.Address, connect Connector) *Session {
	return &Session{user: user, connect: connect, done: make(chan struct{})}
}

// NewWithContract wraps an already established handle.
func NewWithContract(user model.Address, c ledger.Contract) *Session {
	return &Session{user: user, contract: c, done: make(chan struct{})}
}

// User returns the issuer address.
func (s *Session) User() model.Address { return s.user }

// Contract returns the handle, or nil before Init.
func (s *Session) Contract() ledger.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contract
}

// Init establishes the contract handle if none exists yet.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.contract != nil {
		return nil
	}
	if s.connect == nil {
		return errors.New("session: no connector")
	}
	c, closer, err := s.connect(ctx, s.user)
	if err != nil {
		return err
	}
	s.contract, s.closer = c, closer
	return nil
}

// Done is closed when the session ends; background work bound to it should stop.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	s.contract = nil
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
