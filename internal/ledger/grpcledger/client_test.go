package grpcledger

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/and161185/doc-issuer/internal/api"
	"github.com/and161185/doc-issuer/internal/convert"
	"github.com/and161185/doc-issuer/internal/errs"
	"github.com/and161185/doc-issuer/internal/model"
)

const (
	issuer = model.Address("0x1111111111111111111111111111111111111111")
	owner  = model.Address("0x2222222222222222222222222222222222222222")
)

// stubLedger answers from canned values and records the bearer token it saw.
type stubLedger struct {
	api.UnimplementedDocumentLedgerServer

	keyErr   error
	issueErr error
	subErr   error
	docErr   error
	events   []model.IssuanceEvent
	sendBad  bool
	hold     chan struct{}
	gotToken chan string
}

func (s *stubLedger) GetEncryptionPublicKey(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if s.keyErr != nil {
		return nil, s.keyErr
	}
	return wrapperspb.String("key-of-" + in.GetValue()), nil
}

func (s *stubLedger) IssueDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok && s.gotToken != nil {
		s.gotToken <- firstOr(md.Get("authorization"), "")
	}
	if s.issueErr != nil {
		return nil, s.issueErr
	}
	req, err := convert.FromProtoIssuanceRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return convert.ToProtoReceipt(model.TxReceipt{TxHash: "0x" + req.DocumentName, BlockNumber: 9, DocumentID: uuid.Must(uuid.NewV4())}), nil
}

func (s *stubLedger) GetDocument(_ context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if s.docErr != nil {
		return nil, s.docErr
	}
	d := model.Document{ID: uuid.FromStringOrNil(in.GetValue()), BlockNumber: 4, Owner: owner, Issuer: issuer, Template: `[{"label":"a"}]`}
	d.EntryHash = d.ComputeEntryHash(nil)
	return convert.ToProtoDocument(d), nil
}

func (s *stubLedger) SubscribeIssued(_ *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if s.subErr != nil {
		return s.subErr
	}
	if err := stream.SendHeader(metadata.MD{}); err != nil {
		return err
	}
	for _, ev := range s.events {
		if err := stream.Send(convert.ToProtoEvent(ev)); err != nil {
			return err
		}
	}
	if s.sendBad {
		if err := stream.Send(&structpb.Struct{}); err != nil {
			return err
		}
	}
	if s.hold != nil {
		select {
		case <-s.hold:
		case <-stream.Context().Done():
			return stream.Context().Err()
		}
	}
	return status.Error(codes.Unavailable, "node going away")
}

func firstOr(v []string, def string) string {
	if len(v) == 0 {
		return def
	}
	return v[0]
}

func startStub(t *testing.T, srv api.DocumentLedgerServer, o Options) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	api.RegisterDocumentLedgerServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	o.Plaintext = true
	cc, err := Dial("passthrough:///bufnet", o,
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return New(cc)
}

func TestClient_GetEncryptionPublicKey_MapsCodes(t *testing.T) {
	t.Parallel()
	stub := &stubLedger{}
	c := startStub(t, stub, Options{})
	ctx := context.Background()

	key, err := c.GetEncryptionPublicKey(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, "key-of-"+string(owner), key)

	stub.keyErr = status.Error(codes.NotFound, "no key")
	_, err = c.GetEncryptionPublicKey(ctx, owner)
	require.ErrorIs(t, err, errs.ErrNoEncryptionKey)

	stub.keyErr = status.Error(codes.InvalidArgument, "bad")
	_, err = c.GetEncryptionPublicKey(ctx, owner)
	require.ErrorIs(t, err, errs.ErrInvalidAddress)

	stub.keyErr = status.Error(codes.Internal, "db")
	_, err = c.GetEncryptionPublicKey(ctx, owner)
	require.Equal(t, codes.Internal, status.Code(err))
}

func TestClient_IssueDocument_SendsBearer(t *testing.T) {
	t.Parallel()
	stub := &stubLedger{gotToken: make(chan string, 1)}
	c := startStub(t, stub, Options{Token: "tok"})

	rc, err := c.IssueDocument(context.Background(), model.IssuanceRequest{OwnerAddress: owner, DocumentName: "abc"})
	require.NoError(t, err)
	require.Equal(t, "0xabc", rc.TxHash)
	require.Equal(t, int64(9), rc.BlockNumber)
	require.Equal(t, "Bearer tok", <-stub.gotToken)

	stub.issueErr = status.Error(codes.PermissionDenied, "nope")
	_, err = c.IssueDocument(context.Background(), model.IssuanceRequest{OwnerAddress: owner})
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestClient_GetDocument(t *testing.T) {
	t.Parallel()
	stub := &stubLedger{}
	c := startStub(t, stub, Options{})
	id := uuid.Must(uuid.NewV4())

	d, err := c.GetDocument(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, d.ID)
	require.Equal(t, int64(4), d.BlockNumber)
	require.True(t, d.Verify())

	stub.docErr = status.Error(codes.NotFound, "gone")
	_, err = c.GetDocument(context.Background(), id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestClient_SubscribeIssued_DeliversThenReportsError(t *testing.T) {
	t.Parallel()
	ev := model.IssuanceEvent{Issuer: issuer, Owner: owner, DocumentID: uuid.Must(uuid.NewV4()), BlockNumber: 3}
	c := startStub(t, &stubLedger{events: []model.IssuanceEvent{ev}}, Options{})

	sub, err := c.SubscribeIssued(context.Background(), model.EventFilter{Issuer: issuer})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	got := <-sub.Events()
	require.Equal(t, ev.DocumentID, got.DocumentID)

	select {
	case err := <-sub.Err():
		require.Equal(t, codes.Unavailable, status.Code(err))
	case <-time.After(5 * time.Second):
		t.Fatal("no stream error")
	}
	_, open := <-sub.Events()
	require.False(t, open)
}

func TestClient_SubscribeIssued_RejectedUpFront(t *testing.T) {
	t.Parallel()
	c := startStub(t, &stubLedger{subErr: status.Error(codes.Unauthenticated, "no auth")}, Options{})

	_, err := c.SubscribeIssued(context.Background(), model.EventFilter{})
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestClient_SubscribeIssued_BadEventStops(t *testing.T) {
	t.Parallel()
	c := startStub(t, &stubLedger{sendBad: true, hold: make(chan struct{})}, Options{})

	sub, err := c.SubscribeIssued(context.Background(), model.EventFilter{})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	select {
	case err := <-sub.Err():
		require.ErrorContains(t, err, "decode event")
	case <-time.After(5 * time.Second):
		t.Fatal("no decode error")
	}
}

func TestClient_Unsubscribe_ClosesQuietly(t *testing.T) {
	t.Parallel()
	c := startStub(t, &stubLedger{hold: make(chan struct{})}, Options{})

	sub, err := c.SubscribeIssued(context.Background(), model.EventFilter{})
	require.NoError(t, err)
	sub.Unsubscribe()
	sub.Unsubscribe()

	select {
	case _, open := <-sub.Events():
		require.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("events not closed")
	}
	require.Len(t, sub.Err(), 0)
}

func TestConnector_PropagatesTokenErrors(t *testing.T) {
	t.Parallel()
	conn := Connector("passthrough:///unused", Options{Plaintext: true}, func(model.Address) (string, error) {
		return "", errors.New("login required")
	})
	_, _, err := conn(context.Background(), issuer)
	require.ErrorContains(t, err, "login required")
}

func TestFromStatus(t *testing.T) {
	t.Parallel()
	cases := map[codes.Code]error{
		codes.InvalidArgument:   errs.ErrInvalidArgument,
		codes.NotFound:          errs.ErrNotFound,
		codes.AlreadyExists:     errs.ErrAlreadyExists,
		codes.Unauthenticated:   errs.ErrUnauthorized,
		codes.PermissionDenied:  errs.ErrUnauthorized,
		codes.ResourceExhausted: errs.ErrRateLimited,
		codes.Aborted:           errs.ErrVersionConflict,
	}
	for code, want := range cases {
		require.ErrorIs(t, fromStatus(status.Error(code, "x")), want, code.String())
	}
	plain := errors.New("plain")
	require.Equal(t, plain, fromStatus(plain))
}

func TestBearerCreds_Metadata(t *testing.T) {
	t.Parallel()
	b := bearerCreds{token: "T", secure: true}
	md, err := b.GetRequestMetadata(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer T", md["authorization"])
	require.True(t, b.RequireTransportSecurity())
	require.False(t, bearerCreds{token: "T"}.RequireTransportSecurity())
}

func TestLoadTLS_Variants(t *testing.T) {
	t.Parallel()

	creds, err := loadTLS("", true)
	require.NoError(t, err)
	require.NotNil(t, creds)

	creds, err = loadTLS("", false)
	require.NoError(t, err)
	require.NotNil(t, creds)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not pem"), 0o600))
	creds, err = loadTLS(bad, false)
	require.Error(t, err)
	require.Nil(t, creds)

	_, err = loadTLS(filepath.Join(t.TempDir(), "missing.pem"), false)
	require.Error(t, err)
}
