package rpc

import (
	"context"

	"github.com/dmitrijs2005/famledger/internal/models"
	"google.golang.org/grpc"
)

const ServiceName = "famledger.v1.Ledger"

// FullMethod returns the gRPC path of a Ledger method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// LedgerServer is implemented by the server's gRPC handler.
type LedgerServer interface {
	Register(ctx context.Context, in *RegisterRequest) (*RegisterResponse, error)
	GetSalt(ctx context.Context, in *GetSaltRequest) (*GetSaltResponse, error)
	Login(ctx context.Context, in *LoginRequest) (*TokenResponse, error)
	RefreshToken(ctx context.Context, in *RefreshTokenRequest) (*TokenResponse, error)

	CreateHousehold(ctx context.Context, in *CreateHouseholdRequest) (*HouseholdResponse, error)
	ListHouseholds(ctx context.Context, in *ListHouseholdsRequest) (*ListHouseholdsResponse, error)
	AddMember(ctx context.Context, in *AddMemberRequest) (*MemberResponse, error)
	ListMembers(ctx context.Context, in *ListMembersRequest) (*ListMembersResponse, error)

	FetchVersion(ctx context.Context, in *RecordRef) (*VersionResponse, error)
	FetchRecord(ctx context.Context, in *RecordRef) (*RecordResponse, error)
	ApplyWrite(ctx context.Context, in *models.WriteRequest) (*models.WriteResult, error)
	Pull(ctx context.Context, in *PullRequest) (*PullResponse, error)

	PresignReceipt(ctx context.Context, in *PresignReceiptRequest) (*PresignReceiptResponse, error)
	ReceiptURL(ctx context.Context, in *ReceiptURLRequest) (*ReceiptURLResponse, error)
}

// PublicMethods can be called without an access token.
var PublicMethods = map[string]bool{
	FullMethod("Register"):     true,
	FullMethod("GetSalt"):      true,
	FullMethod("Login"):        true,
	FullMethod("RefreshToken"): true,
}

func unary[Req, Resp any](name string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(LedgerServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", LedgerServer.Register),
		unary("GetSalt", LedgerServer.GetSalt),
		unary("Login", LedgerServer.Login),
		unary("RefreshToken", LedgerServer.RefreshToken),
		unary("CreateHousehold", LedgerServer.CreateHousehold),
		unary("ListHouseholds", LedgerServer.ListHouseholds),
		unary("AddMember", LedgerServer.AddMember),
		unary("ListMembers", LedgerServer.ListMembers),
		unary("FetchVersion", LedgerServer.FetchVersion),
		unary("FetchRecord", LedgerServer.FetchRecord),
		unary("ApplyWrite", LedgerServer.ApplyWrite),
		unary("Pull", LedgerServer.Pull),
		unary("PresignReceipt", LedgerServer.PresignReceipt),
		unary("ReceiptURL", LedgerServer.ReceiptURL),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "famledger/ledger",
}

func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// LedgerClient is a typed client over a connection. Every call is sent with
// the JSON content subtype.
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := cc.Invoke(ctx, FullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, "Register", in, opts)
}

func (c *LedgerClient) GetSalt(ctx context.Context, in *GetSaltRequest, opts ...grpc.CallOption) (*GetSaltResponse, error) {
	return invoke[GetSaltResponse](ctx, c.cc, "GetSalt", in, opts)
}

func (c *LedgerClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*TokenResponse, error) {
	return invoke[TokenResponse](ctx, c.cc, "Login", in, opts)
}

func (c *LedgerClient) RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*TokenResponse, error) {
	return invoke[TokenResponse](ctx, c.cc, "RefreshToken", in, opts)
}

func (c *LedgerClient) CreateHousehold(ctx context.Context, in *CreateHouseholdRequest, opts ...grpc.CallOption) (*HouseholdResponse, error) {
	return invoke[HouseholdResponse](ctx, c.cc, "CreateHousehold", in, opts)
}

func (c *LedgerClient) ListHouseholds(ctx context.Context, in *ListHouseholdsRequest, opts ...grpc.CallOption) (*ListHouseholdsResponse, error) {
	return invoke[ListHouseholdsResponse](ctx, c.cc, "ListHouseholds", in, opts)
}

func (c *LedgerClient) AddMember(ctx context.Context, in *AddMemberRequest, opts ...grpc.CallOption) (*MemberResponse, error) {
	return invoke[MemberResponse](ctx, c.cc, "AddMember", in, opts)
}

func (c *LedgerClient) ListMembers(ctx context.Context, in *ListMembersRequest, opts ...grpc.CallOption) (*ListMembersResponse, error) {
	return invoke[ListMembersResponse](ctx, c.cc, "ListMembers", in, opts)
}

func (c *LedgerClient) FetchVersion(ctx context.Context, in *RecordRef, opts ...grpc.CallOption) (*VersionResponse, error) {
	return invoke[VersionResponse](ctx, c.cc, "FetchVersion", in, opts)
}

func (c *LedgerClient) FetchRecord(ctx context.Context, in *RecordRef, opts ...grpc.CallOption) (*RecordResponse, error) {
	return invoke[RecordResponse](ctx, c.cc, "FetchRecord", in, opts)
}

func (c *LedgerClient) ApplyWrite(ctx context.Context, in *models.WriteRequest, opts ...grpc.CallOption) (*models.WriteResult, error) {
	return invoke[models.WriteResult](ctx, c.cc, "ApplyWrite", in, opts)
}

func (c *LedgerClient) Pull(ctx context.Context, in *PullRequest, opts ...grpc.CallOption) (*PullResponse, error) {
	return invoke[PullResponse](ctx, c.cc, "Pull", in, opts)
}

func (c *LedgerClient) PresignReceipt(ctx context.Context, in *PresignReceiptRequest, opts ...grpc.CallOption) (*PresignReceiptResponse, error) {
	return invoke[PresignReceiptResponse](ctx, c.cc, "PresignReceipt", in, opts)
}

func (c *LedgerClient) ReceiptURL(ctx context.Context, in *ReceiptURLRequest, opts ...grpc.CallOption) (*ReceiptURLResponse, error) {
	return invoke[ReceiptURLResponse](ctx, c.cc, "ReceiptURL", in, opts)
}
