// Package grpcledger implements the ledger contract over the DocumentLedger gRPC API.
package grpcledger

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/and161185/doc-issuer/internal/api"
	"github.com/and161185/doc-issuer/internal/convert"
	"github.com/and161185/doc-issuer/internal/errs"
	"github.com/and161185/doc-issuer/internal/ledger"
	"github.com/and161185/doc-issuer/internal/model"
	"github.com/and161185/doc-issuer/internal/session"
)

// Options configure the connection to a ledger node.
type Options struct {
	CACert     string // PEM bundle; empty uses the system roots
	SkipVerify bool   // dev only
	Plaintext  bool   // no TLS at all (local node, tests)
	Token      string // bearer access token; empty for anonymous calls
}

// Client talks to one ledger node. It implements ledger.Contract.
type Client struct {
	cl api.DocumentLedgerClient
}

var _ ledger.Contract = (*Client)(nil)

// New wraps an existing connection. Authentication is configured on the connection.
func New(cc grpc.ClientConnInterface) *Client {
	return &Client{cl: api.NewDocumentLedgerClient(cc)}
}

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // dev flag
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// Dial connects to a ledger node at target.
func Dial(target string, o Options, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	var creds credentials.TransportCredentials
	if o.Plaintext {
		creds = insecure.NewCredentials()
	} else {
		c, err := loadTLS(o.CACert, o.SkipVerify)
		if err != nil {
			return nil, err
		}
		creds = c
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if o.Token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: o.Token, secure: !o.Plaintext}))
	}
	return grpc.NewClient(target, append(opts, extra...)...)
}

// Connector returns a session.Connector that dials target with the token provided by tokenFor.
func Connector(target string, o Options, tokenFor func(user model.Address) (string, error), extra ...grpc.DialOption) session.Connector {
	return func(_ context.Context, user model.Address) (ledger.Contract, func() error, error) {
		tok, err := tokenFor(user)
		if err != nil {
			return nil, nil, err
		}
		withTok := o
		withTok.Token = tok
		cc, err := Dial(target, withTok, extra...)
		if err != nil {
			return nil, nil, err
		}
		return New(cc), cc.Close, nil
	}
}

// fromStatus maps gRPC codes back onto the sentinels callers test with errors.Is.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.InvalidArgument:
		sentinel = errs.ErrInvalidArgument
	case codes.NotFound:
		sentinel = errs.ErrNotFound
	case codes.AlreadyExists:
		sentinel = errs.ErrAlreadyExists
	case codes.Unauthenticated, codes.PermissionDenied:
		sentinel = errs.ErrUnauthorized
	case codes.ResourceExhausted:
		sentinel = errs.ErrRateLimited
	case codes.Aborted:
		sentinel = errs.ErrVersionConflict
	default:
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}

// Register creates an account for the key pair's public half.
func (c *Client) Register(ctx context.Context, encryptionPublicKey, password string) (model.Address, error) {
	out, err := c.cl.Register(ctx, convert.ToProtoRegister(encryptionPublicKey, password))
	if err != nil {
		return "", fromStatus(err)
	}
	return model.ParseAddress(out.GetValue())
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, addr model.Address, password string) (model.Tokens, error) {
	out, err := c.cl.Login(ctx, convert.ToProtoLogin(addr, password))
	if err != nil {
		return model.Tokens{}, fromStatus(err)
	}
	return convert.FromProtoTokens(out)
}

// GetEncryptionPublicKey implements ledger.Contract.
func (c *Client) GetEncryptionPublicKey(ctx context.Context, owner model.Address) (string, error) {
	out, err := c.cl.GetEncryptionPublicKey(ctx, wrapperspb.String(string(owner)))
	if err != nil {
		switch status.Code(err) {
		case codes.InvalidArgument:
			return "", fmt.Errorf("%s: %w", owner, errs.ErrInvalidAddress)
		case codes.NotFound:
			return "", fmt.Errorf("%s: %w", owner, errs.ErrNoEncryptionKey)
		}
		return "", fromStatus(err)
	}
	if out.GetValue() == "" {
		return "", fmt.Errorf("%s: %w", owner, errs.ErrNoEncryptionKey)
	}
	return out.GetValue(), nil
}

// IssueDocument implements ledger.Contract.
func (c *Client) IssueDocument(ctx context.Context, req model.IssuanceRequest) (model.TxReceipt, error) {
	out, err := c.cl.IssueDocument(ctx, convert.ToProtoIssuanceRequest(req))
	if err != nil {
		return model.TxReceipt{}, fromStatus(err)
	}
	return convert.FromProtoReceipt(out)
}

// ListOwnedDocuments returns documents issued to the authenticated account.
func (c *Client) ListOwnedDocuments(ctx context.Context) ([]model.Document, error) {
	out, err := c.cl.ListOwnedDocuments(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, fromStatus(err)
	}
	return convert.FromProtoDocuments(out)
}

// GetDocument fetches one document the authenticated account owns or issued.
func (c *Client) GetDocument(ctx context.Context, id uuid.UUID) (model.Document, error) {
	out, err := c.cl.GetDocument(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return model.Document{}, fromStatus(err)
	}
	return convert.FromProtoDocument(out)
}

// SubscribeIssued implements ledger.Contract. It returns once the node has registered
// the subscription, so every event published afterwards is delivered.
func (c *Client) SubscribeIssued(ctx context.Context, filter model.EventFilter) (ledger.Subscription, error) {
	sctx, cancel := context.WithCancel(ctx)
	stream, err := c.cl.SubscribeIssued(sctx, convert.ToProtoFilter(filter))
	if err != nil {
		cancel()
		return nil, fromStatus(err)
	}
	// Header swallows stream errors; a nil header means the call already ended.
	md, err := stream.Header()
	if err == nil && md == nil {
		_, err = stream.Recv()
		if err == nil || errors.Is(err, io.EOF) {
			err = errors.New("subscription closed by ledger")
		}
	}
	if err != nil {
		cancel()
		return nil, fromStatus(err)
	}

	sub := &subscription{
		events: make(chan model.IssuanceEvent),
		errc:   make(chan error, 1),
		cancel: cancel,
	}
	go sub.pump(sctx, stream)
	return sub, nil
}

type subscription struct {
	events chan model.IssuanceEvent
	errc   chan error
	cancel context.CancelFunc
	once   sync.Once
}

func (s *subscription) pump(ctx context.Context, stream grpc.ServerStreamingClient[structpb.Struct]) {
	defer close(s.events)
	for {
		msg, err := stream.Recv()
		if err != nil {
			if ctx.Err() == nil {
				if errors.Is(err, io.EOF) {
					err = errors.New("subscription closed by ledger")
				}
				s.errc <- fromStatus(err)
			}
			return
		}
		ev, err := convert.FromProtoEvent(msg)
		if err != nil {
			s.errc <- fmt.Errorf("decode event: %w", err)
			s.cancel()
			return
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (s *subscription) Events() <-chan model.IssuanceEvent { return s.events }
func (s *subscription) Err() <-chan error                  { return s.errc }
func (s *subscription) Unsubscribe()                       { s.once.Do(s.cancel) }
