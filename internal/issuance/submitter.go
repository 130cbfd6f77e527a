// Package issuance runs one confidential-document issuance attempt as an explicit state machine:
// Idle → Validating → FetchingRecipientKey → Encrypting → SubmittingTransaction → Succeeded | Failed.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/doc-issuer/internal/crypto/envelope"
	"github.com/and161185/doc-issuer/internal/model"
	"github.com/and161185/doc-issuer/internal/notify"
	"github.com/and161185/doc-issuer/internal/schema"
	"github.com/and161185/doc-issuer/internal/session"
)

// State of the submitter.
type State int

const (
	Idle State = iota
	Validating
	FetchingRecipientKey
	Encrypting
	SubmittingTransaction
	Succeeded
	Failed
)

var stateNames = [...]string{"idle", "validating", "fetching-recipient-key", "encrypting", "submitting-transaction", "succeeded", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Encryptor seals a plaintext document for a base64 recipient key.
type Encryptor func(recipientPublicKey string, data []byte) (model.HexBlob, error)

// Form holds the free-text inputs next to the field list.
type Form struct {
	OwnerAddress string
	DocumentName string
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithClock overrides the issuedAt time source.
func WithClock(now func() time.Time) Option { return func(s *Submitter) { s.now = now } }

// WithEncryptor overrides the encryption adapter.
func WithEncryptor(enc Encryptor) Option { return func(s *Submitter) { s.encrypt = enc } }

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option { return func(s *Submitter) { s.log = log } }

// WithObserver is called on every state change, e.g. to drive a progress indicator.
func WithObserver(fn func(State)) Option { return func(s *Submitter) { s.observe = fn } }

// Submitter owns the composition state of one issuer session. Not safe for concurrent use:
// every call is expected from the single goroutine driving the UI.
type Submitter struct {
	sess    *session.Session
	doc     *schema.Builder
	sink    notify.Sink
	encrypt Encryptor
	now     func() time.Time
	log     *zap.Logger
	observe func(State)

	form  Form
	state State
}

// New constructs a Submitter bound to sess and the builder it drains on success.
func New(sess *session.Session, doc *schema.Builder, sink notify.Sink, opts ...Option) *Submitter {
	s := &Submitter{
		sess:    sess,
		doc:     doc,
		sink:    sink,
		encrypt: envelope.Encrypt,
		now:     time.Now,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetOwnerAddress updates the owner input.
func (s *Submitter) SetOwnerAddress(v string) { s.form.OwnerAddress = v }

// SetDocumentName updates the document name input.
func (s *Submitter) SetDocumentName(v string) { s.form.DocumentName = v }

// Form returns the current inputs.
func (s *Submitter) Form() Form { return s.form }

// Schema returns the builder the submitter reads fields from.
func (s *Submitter) Schema() *schema.Builder { return s.doc }

// State returns the state reached by the last attempt.
func (s *Submitter) State() State { return s.state }

// attempt carries intermediate results between steps. It lives for one Submit call.
type attempt struct {
	owner    model.Address
	key      string
	plain    []byte
	template string
	blob     model.HexBlob
	receipt  model.TxReceipt
}

// Submit runs one attempt to completion. Every failure is terminal for the attempt, raises
// exactly one notification, and leaves the inputs untouched so the issuer can retry.
// A success clears the field list and the form.
func (s *Submitter) Submit(ctx context.Context) (model.TxReceipt, error) {
	a := &attempt{}
	s.enter(Validating)
	for {
		next, err := s.step(ctx, a)
		if err != nil {
			return model.TxReceipt{}, s.fail(err)
		}
		if next == Succeeded {
			s.succeed(a)
			return a.receipt, nil
		}
		s.enter(next)
	}
}

// step executes the work of the current state and returns its successor.
func (s *Submitter) step(ctx context.Context, a *attempt) (State, error) {
	switch s.state {
	case Validating:
		if s.form.OwnerAddress == "" || s.form.DocumentName == "" {
			return Failed, &Error{Kind: KindValidation, Reason: ReasonMissingFields}
		}
		if s.doc.Len() == 0 {
			return Failed, &Error{Kind: KindValidation, Reason: ReasonEmptyDocument}
		}
		return FetchingRecipientKey, nil

	case FetchingRecipientKey:
		owner, err := model.ParseAddress(s.form.OwnerAddress)
		if err != nil {
			return Failed, &Error{Kind: KindOwnerResolution, Err: err}
		}
		if err := s.sess.Init(ctx); err != nil {
			return Failed, &Error{Kind: KindOwnerResolution, Err: fmt.Errorf("session init: %w", err)}
		}
		key, err := s.sess.Contract().GetEncryptionPublicKey(ctx, owner)
		if err != nil {
			return Failed, &Error{Kind: KindOwnerResolution, Err: err}
		}
		a.owner, a.key = owner, key
		return Encrypting, nil

	case Encrypting:
		plain, err := s.doc.DocumentJSON()
		if err != nil {
			return Failed, &Error{Kind: KindOwnerResolution, Err: err}
		}
		tpl, err := s.doc.TemplateJSON()
		if err != nil {
			return Failed, &Error{Kind: KindOwnerResolution, Err: err}
		}
		blob, err := s.encrypt(a.key, plain)
		if err != nil {
			return Failed, &Error{Kind: KindOwnerResolution, Err: err}
		}
		a.template, a.blob = tpl, blob
		return SubmittingTransaction, nil

	case SubmittingTransaction:
		req := model.IssuanceRequest{
			OwnerAddress:      a.owner,
			DocumentName:      s.form.DocumentName,
			IssuedAt:          s.now().Unix(),
			EncryptedDocument: a.blob,
			Template:          a.template,
			IssuerAddress:     s.sess.User(),
		}
		rcpt, err := s.sess.Contract().IssueDocument(ctx, req)
		if err != nil {
			return Failed, &Error{Kind: KindTransaction, Err: err}
		}
		a.receipt = rcpt
		return Succeeded, nil

	default:
		return Failed, fmt.Errorf("issuance: no step for state %s", s.state)
	}
}

func (s *Submitter) enter(st State) {
	s.state = st
	if s.observe != nil {
		s.observe(st)
	}
}

func (s *Submitter) fail(err error) error {
	failedIn := s.state
	s.enter(Failed)

	var ie *Error
	if !errors.As(err, &ie) {
		ie = &Error{Kind: KindTransaction, Err: err}
	}
	s.log.Warn("issuance failed",
		zap.String("state", failedIn.String()),
		zap.String("kind", ie.Kind.String()),
		zap.String("reason", ie.Reason),
		zap.Error(ie.Err),
	)
	title, msg, sev := ie.notification()
	s.sink.Notify(title, msg, sev)
	return ie
}

func (s *Submitter) succeed(a *attempt) {
	s.enter(Succeeded)
	s.log.Info("issuance submitted",
		zap.String("owner", a.owner.String()),
		zap.String("tx", a.receipt.TxHash),
		zap.Int64("block", a.receipt.BlockNumber),
	)
	s.doc.Clear()
	s.form = Form{}
}
