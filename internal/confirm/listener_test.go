package confirm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/and161185/doc-issuer/internal/ledger"
	"github.com/and161185/doc-issuer/internal/model"
	"github.com/and161185/doc-issuer/internal/notify"
	"github.com/and161185/doc-issuer/internal/session"
)

const (
	me    = model.Address("0x1111111111111111111111111111111111111111")
	other = model.Address("0x2222222222222222222222222222222222222222")
)

type fakeSub struct {
	events chan model.IssuanceEvent
	errs   chan error
	once   sync.Once
	unsub  chan struct{}
}

func newFakeSub() *fakeSub {
	return &fakeSub{events: make(chan model.IssuanceEvent), errs: make(chan error, 1), unsub: make(chan struct{})}
}

func (s *fakeSub) Events() <-chan model.IssuanceEvent { return s.events }
func (s *fakeSub) Err() <-chan error                  { return s.errs }
func (s *fakeSub) Unsubscribe()                       { s.once.Do(func() { close(s.unsub) }) }

type fakeContract struct {
	sub       *fakeSub
	subErr    error
	gotFilter model.EventFilter
	subCalls  int
}

func (f *fakeContract) GetEncryptionPublicKey(context.Context, model.Address) (string, error) {
	return "", errors.New("unused")
}
func (f *fakeContract) IssueDocument(context.Context, model.IssuanceRequest) (model.TxReceipt, error) {
	return model.TxReceipt{}, errors.New("unused")
}
func (f *fakeContract) SubscribeIssued(_ context.Context, filter model.EventFilter) (ledger.Subscription, error) {
	f.subCalls++
	f.gotFilter = filter
	if f.subErr != nil {
		return nil, f.subErr
	}
	return f.sub, nil
}

type countingSink struct {
	mu    sync.Mutex
	notes []string
}

func (c *countingSink) Notify(title, msg string, sev notify.Severity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, string(sev)+"|"+title+"|"+msg)
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notes)
}

func TestListener_NotifiesOncePerMatchingEvent(t *testing.T) {
	t.Parallel()
	fc := &fakeContract{sub: newFakeSub()}
	sink := &countingSink{}
	l := New(session.NewWithContract(me, fc), sink, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, l.Start(ctx))
	require.Equal(t, model.EventFilter{Issuer: me}, fc.gotFilter)

	fc.sub.events <- model.IssuanceEvent{Issuer: me, BlockNumber: 1}
	fc.sub.events <- model.IssuanceEvent{Issuer: other, BlockNumber: 2}
	fc.sub.events <- model.IssuanceEvent{Issuer: me, BlockNumber: 3}

	cancel()
	<-l.Done()
	require.Equal(t, 2, sink.count())
	require.Equal(t, "success|Success|Document issued successfully", sink.notes[0])
	require.NoError(t, l.Err())

	select {
	case <-fc.sub.unsub:
	case <-time.After(time.Second):
		t.Fatal("subscription not released")
	}
}

func TestListener_StreamError_LoggedNotRetried(t *testing.T) {
	t.Parallel()
	fc := &fakeContract{sub: newFakeSub()}
	core, logs := observer.New(zap.ErrorLevel)
	sink := &countingSink{}
	l := New(session.NewWithContract(me, fc), sink, zap.New(core))

	require.NoError(t, l.Start(context.Background()))
	fc.sub.errs <- errors.New("connection reset")

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("listener did not stop on stream error")
	}
	var se *SubscriptionError
	require.ErrorAs(t, l.Err(), &se)
	require.Equal(t, 1, fc.subCalls)
	require.Equal(t, 0, sink.count())
	require.Equal(t, 1, logs.Len())
}

func TestListener_ClosedStreamWithPendingError(t *testing.T) {
	t.Parallel()
	fc := &fakeContract{sub: newFakeSub()}
	l := New(session.NewWithContract(me, fc), &countingSink{}, nil)
	require.NoError(t, l.Start(context.Background()))

	fc.sub.errs <- errors.New("eof")
	close(fc.sub.events)
	<-l.Done()
	require.Error(t, l.Err())
}

func TestListener_SubscribeFails(t *testing.T) {
	t.Parallel()
	fc := &fakeContract{subErr: errors.New("unavailable")}
	l := New(session.NewWithContract(me, fc), &countingSink{}, nil)

	err := l.Start(context.Background())
	var se *SubscriptionError
	require.ErrorAs(t, err, &se)
	<-l.Done()
}

func TestListener_StartTwice(t *testing.T) {
	t.Parallel()
	fc := &fakeContract{sub: newFakeSub()}
	l := New(session.NewWithContract(me, fc), &countingSink{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, l.Start(ctx))
	require.ErrorIs(t, l.Start(ctx), ErrAlreadyStarted)
	require.Equal(t, 1, fc.subCalls)
}

func TestListener_StopsWhenSessionCloses(t *testing.T) {
	t.Parallel()
	fc := &fakeContract{sub: newFakeSub()}
	sess := session.NewWithContract(me, fc)
	l := New(sess, &countingSink{}, nil)
	require.NoError(t, l.Start(context.Background()))

	require.NoError(t, sess.Close())
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("listener outlived its session")
	}
}
