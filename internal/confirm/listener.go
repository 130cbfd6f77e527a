// Package confirm raises a success notification for every issuance event of the session's issuer.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/doc-issuer/internal/ledger"
	"github.com/and161185/doc-issuer/internal/model"
	"github.com/and161185/doc-issuer/internal/notify"
	"github.com/and161185/doc-issuer/internal/session"
)

// ErrAlreadyStarted is returned by a second Start on the same listener.
var ErrAlreadyStarted = errors.New("listener already started")

// SubscriptionError reports a failure of the event stream. It is logged, never retried.
type SubscriptionError struct{ Err error }

func (e *SubscriptionError) Error() string { return fmt.Sprintf("issuance subscription: %v", e.Err) }
func (e *SubscriptionError) Unwrap() error { return e.Err }

// Listener is started once per session. Events carry no request id, so concurrent issuances
// by the same issuer produce indistinguishable notifications.
type Listener struct {
	sess *session.Session
	sink notify.Sink
	log  *zap.Logger

	mu      sync.Mutex
	started bool
	err     error
	done    chan struct{}
}

// New returns a listener for the issuer of sess.
func New(sess *session.Session, sink notify.Sink, log *zap.Logger) *Listener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{sess: sess, sink: sink, log: log, done: make(chan struct{})}
}

// Start subscribes to issuance events of the current user from the latest block and
// processes them in the background until ctx ends, the session closes, or the stream fails.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return ErrAlreadyStarted
	}
	l.started = true
	l.mu.Unlock()

	if err := l.sess.Init(ctx); err != nil {
		return l.stop(&SubscriptionError{Err: err})
	}
	filter := model.EventFilter{Issuer: l.sess.User()}
	sub, err := l.sess.Contract().SubscribeIssued(ctx, filter)
	if err != nil {
		return l.stop(&SubscriptionError{Err: err})
	}
	go l.run(ctx, sub, filter)
	return nil
}

// Done is closed when the listener stops.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Err returns the subscription failure that stopped the listener, if any.
func (l *Listener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Listener) run(ctx context.Context, sub ledger.Subscription, filter model.EventFilter) {
	defer sub.Unsubscribe()
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				select {
				case err := <-sub.Err():
					_ = l.stop(subErr(err))
				default:
					_ = l.stop(nil)
				}
				return
			}
			if !filter.Match(ev) {
				continue
			}
			l.log.Info("document issued",
				zap.String("issuer", ev.Issuer.String()),
				zap.Int64("block", ev.BlockNumber),
				zap.String("tx", ev.TxHash),
			)
			l.sink.Notify("Success", "Document issued successfully", notify.Success)
		case err := <-sub.Err():
			_ = l.stop(subErr(err))
			return
		case <-ctx.Done():
			_ = l.stop(nil)
			return
		case <-l.sess.Done():
			_ = l.stop(nil)
			return
		}
	}
}

func subErr(err error) error {
	if err == nil {
		return nil
	}
	return &SubscriptionError{Err: err}
}

func (l *Listener) stop(err error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.err = err
		l.log.Error("issuance subscription failed; confirmations disabled for this session", zap.Error(err))
	}
	close(l.done)
	return err
}
