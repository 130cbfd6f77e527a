// Package api declares the docledger.v1.DocumentLedger gRPC service.
//
// Messages are protobuf well-known types so no generated message code is needed;
// internal/convert maps them to and from the domain model. The descriptor below
// follows the layout protoc-gen-go-grpc produces.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "docledger.v1.DocumentLedger"

const (
	DocumentLedger_Register_FullMethodName               = "/docledger.v1.DocumentLedger/Register"
	DocumentLedger_Login_FullMethodName                  = "/docledger.v1.DocumentLedger/Login"
	DocumentLedger_GetEncryptionPublicKey_FullMethodName = "/docledger.v1.DocumentLedger/GetEncryptionPublicKey"
	DocumentLedger_IssueDocument_FullMethodName          = "/docledger.v1.DocumentLedger/IssueDocument"
	DocumentLedger_ListOwnedDocuments_FullMethodName     = "/docledger.v1.DocumentLedger/ListOwnedDocuments"
	DocumentLedger_GetDocument_FullMethodName            = "/docledger.v1.DocumentLedger/GetDocument"
	DocumentLedger_SubscribeIssued_FullMethodName        = "/docledger.v1.DocumentLedger/SubscribeIssued"
)

// DocumentLedgerClient is the client API for the DocumentLedger service.
type DocumentLedgerClient interface {
	// Register creates an account from an encryption public key and a password; returns the address.
	Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	// Login returns {access_token, expires_at}.
	Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	// GetEncryptionPublicKey is a read-only lookup of an account's registered key.
	GetEncryptionPublicKey(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	// IssueDocument anchors an encrypted document; the issuer is the token subject.
	IssueDocument(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	// ListOwnedDocuments returns documents issued to the token subject.
	ListOwnedDocuments(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
	// GetDocument returns one document by id if the token subject owns or issued it.
	GetDocument(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	// SubscribeIssued streams issuance events published after the call, filtered by issuer.
	SubscribeIssued(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type documentLedgerClient struct {
	cc grpc.ClientConnInterface
}

// NewDocumentLedgerClient wraps a client connection.
func NewDocumentLedgerClient(cc grpc.ClientConnInterface) DocumentLedgerClient {
	return &documentLedgerClient{cc}
}

func (c *documentLedgerClient) Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, DocumentLedger_Register_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentLedgerClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DocumentLedger_Login_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentLedgerClient) GetEncryptionPublicKey(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, DocumentLedger_GetEncryptionPublicKey_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentLedgerClient) IssueDocument(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DocumentLedger_IssueDocument_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentLedgerClient) ListOwnedDocuments(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, DocumentLedger_ListOwnedDocuments_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentLedgerClient) GetDocument(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DocumentLedger_GetDocument_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentLedgerClient) SubscribeIssued(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &DocumentLedger_ServiceDesc.Streams[0], DocumentLedger_SubscribeIssued_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// DocumentLedgerServer is the server API for the DocumentLedger service.
// Implementations must embed UnimplementedDocumentLedgerServer.
type DocumentLedgerServer interface {
	Register(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEncryptionPublicKey(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	IssueDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOwnedDocuments(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	GetDocument(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	SubscribeIssued(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
	mustEmbedUnimplementedDocumentLedgerServer()
}

// UnimplementedDocumentLedgerServer answers codes.Unimplemented for every method.
type UnimplementedDocumentLedgerServer struct{}

func (UnimplementedDocumentLedgerServer) Register(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedDocumentLedgerServer) Login(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedDocumentLedgerServer) GetEncryptionPublicKey(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetEncryptionPublicKey not implemented")
}
func (UnimplementedDocumentLedgerServer) IssueDocument(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method IssueDocument not implemented")
}
func (UnimplementedDocumentLedgerServer) ListOwnedDocuments(context.Context, *emptypb.Empty) (*structpb.ListValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListOwnedDocuments not implemented")
}
func (UnimplementedDocumentLedgerServer) GetDocument(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetDocument not implemented")
}
func (UnimplementedDocumentLedgerServer) SubscribeIssued(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error {
	return status.Errorf(codes.Unimplemented, "method SubscribeIssued not implemented")
}
func (UnimplementedDocumentLedgerServer) mustEmbedUnimplementedDocumentLedgerServer() {}

// RegisterDocumentLedgerServer attaches srv to s.
func RegisterDocumentLedgerServer(s grpc.ServiceRegistrar, srv DocumentLedgerServer) {
	s.RegisterService(&DocumentLedger_ServiceDesc, srv)
}

func _DocumentLedger_Register_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentLedgerServer).Register(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DocumentLedger_Register_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentLedgerServer).Register(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _DocumentLedger_Login_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentLedgerServer).Login(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DocumentLedger_Login_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentLedgerServer).Login(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _DocumentLedger_GetEncryptionPublicKey_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentLedgerServer).GetEncryptionPublicKey(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DocumentLedger_GetEncryptionPublicKey_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentLedgerServer).GetEncryptionPublicKey(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _DocumentLedger_IssueDocument_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentLedgerServer).IssueDocument(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DocumentLedger_IssueDocument_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentLedgerServer).IssueDocument(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _DocumentLedger_ListOwnedDocuments_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentLedgerServer).ListOwnedDocuments(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DocumentLedger_ListOwnedDocuments_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentLedgerServer).ListOwnedDocuments(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _DocumentLedger_GetDocument_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentLedgerServer).GetDocument(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DocumentLedger_GetDocument_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentLedgerServer).GetDocument(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _DocumentLedger_SubscribeIssued_Handler(srv any, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(DocumentLedgerServer).SubscribeIssued(m, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// DocumentLedger_ServiceDesc is the grpc.ServiceDesc for the DocumentLedger service.
var DocumentLedger_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentLedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: _DocumentLedger_Register_Handler},
		{MethodName: "Login", Handler: _DocumentLedger_Login_Handler},
		{MethodName: "GetEncryptionPublicKey", Handler: _DocumentLedger_GetEncryptionPublicKey_Handler},
		{MethodName: "IssueDocument", Handler: _DocumentLedger_IssueDocument_Handler},
		{MethodName: "ListOwnedDocuments", Handler: _DocumentLedger_ListOwnedDocuments_Handler},
		{MethodName: "GetDocument", Handler: _DocumentLedger_GetDocument_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SubscribeIssued",
			Handler:       _DocumentLedger_SubscribeIssued_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "docledger/v1/ledger.proto",
}
