// Package grpcserver exposes the document ledger gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/and161185/doc-issuer/internal/api"
	"github.com/and161185/doc-issuer/internal/convert"
	"github.com/and161185/doc-issuer/internal/errs"
	"github.com/and161185/doc-issuer/internal/model"
	"github.com/and161185/doc-issuer/internal/service"
)

// Server wires services into gRPC handlers.
type Server struct {
	api.UnimplementedDocumentLedgerServer
	accounts service.AccountService
	docs     service.DocumentService
	signKey  []byte
}

// New constructs a gRPC server with injected services.
func New(accounts service.AccountService, docs service.DocumentService, signKey []byte) *Server {
	return &Server{accounts: accounts, docs: docs, signKey: signKey}
}

// --- Accounts ---

// Register creates an account and returns its address.
func (s *Server) Register(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	pub, pwd := convert.FromProtoRegister(req)
	if pub == "" || pwd == "" {
		return nil, status.Error(codes.InvalidArgument, "empty key/password")
	}
	addr, err := s.accounts.Register(ctx, pub, pwd)
	if err != nil {
		return nil, toStatus("register", err)
	}
	return wrapperspb.String(string(addr)), nil
}

// Login authenticates an account and returns an access token.
func (s *Server) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	addr, pwd, err := convert.FromProtoLogin(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "bad address")
	}
	tok, err := s.accounts.LoginWithIP(ctx, addr, pwd, peerAddr(ctx))
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "bad credentials")
		}
		return nil, toStatus("login", err)
	}
	return convert.ToProtoTokens(tok), nil
}

// GetEncryptionPublicKey looks up an account's registered key. No authentication required.
func (s *Server) GetEncryptionPublicKey(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	key, err := s.accounts.EncryptionPublicKey(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus("get key", err)
	}
	return wrapperspb.String(key), nil
}

// --- Documents ---

// IssueDocument appends an encrypted document signed off by the token subject.
func (s *Server) IssueDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	issuer, err := s.addressFromCtx(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	r, err := convert.FromProtoIssuanceRequest(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	if r.IssuerAddress != "" && !r.IssuerAddress.Equal(issuer) {
		return nil, status.Error(codes.PermissionDenied, "issuer does not match token")
	}
	rc, err := s.docs.Issue(ctx, issuer, r)
	if err != nil {
		return nil, toStatus("issue", err)
	}
	return convert.ToProtoReceipt(rc), nil
}

// ListOwnedDocuments returns the documents issued to the token subject.
func (s *Server) ListOwnedDocuments(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	owner, err := s.addressFromCtx(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	ds, err := s.docs.Owned(ctx, owner)
	if err != nil {
		return nil, toStatus("list", err)
	}
	return convert.ToProtoDocuments(ds), nil
}

// GetDocument returns one document the token subject owns or issued.
func (s *Server) GetDocument(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	caller, err := s.addressFromCtx(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	id, err := uuid.FromString(strings.TrimSpace(req.GetValue()))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "bad document id")
	}
	d, err := s.docs.Document(ctx, caller, id)
	if err != nil {
		return nil, toStatus("get", err)
	}
	return convert.ToProtoDocument(d), nil
}

// SubscribeIssued streams events published after the subscription is registered.
// Response headers are sent once the subscription is live.
func (s *Server) SubscribeIssued(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	if _, err := s.addressFromCtx(ctx); err != nil {
		return status.Error(codes.Unauthenticated, "no auth")
	}
	filter, err := convert.FromProtoFilter(req)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "bad filter: %v", err)
	}

	sub := s.docs.Subscribe(filter)
	defer sub.Unsubscribe()
	if err := stream.SendHeader(metadata.MD{}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case ev, ok := <-sub.C():
			if !ok {
				if sub.Lagged() {
					return status.Error(codes.DataLoss, "subscriber fell behind, events were dropped")
				}
				return status.Error(codes.Unavailable, "ledger shutting down")
			}
			if err := stream.Send(convert.ToProtoEvent(ev)); err != nil {
				return err
			}
		}
	}
}

// toStatus maps service errors onto gRPC codes.
func toStatus(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrInvalidArgument), errors.Is(err, errs.ErrInvalidAddress):
		return status.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrNoEncryptionKey):
		return status.Errorf(codes.NotFound, "%s: %v", op, err)
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Errorf(codes.AlreadyExists, "%s: %v", op, err)
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Errorf(codes.PermissionDenied, "%s: %v", op, err)
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	case errors.Is(err, errs.ErrVersionConflict):
		return status.Errorf(codes.Aborted, "%s: %v", op, err)
	default:
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
}

// addressFromCtx returns the caller set by the auth interceptor, or verifies
// the bearer token itself when the handler runs without one.
func (s *Server) addressFromCtx(ctx context.Context) (model.Address, error) {
	if addr, ok := AddressFromCtx(ctx); ok {
		return addr, nil
	}
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		return "", err
	}
	return s.VerifyToken(tok)
}

// VerifyToken checks an HS256 access token and returns its subject as an address.
func (s *Server) VerifyToken(tok string) (model.Address, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return "", errors.New("invalid token")
	}

	v := jwt.NewValidator(jwt.WithLeeway(30 * time.Second))
	if err := v.Validate(&claims); err != nil {
		return "", errors.New("token expired or not valid yet")
	}

	addr, err := model.ParseAddress(claims.Subject)
	if err != nil {
		return "", errors.New("bad subject")
	}
	return addr, nil
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}
