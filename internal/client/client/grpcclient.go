package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/dmitrijs2005/famledger/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ledgerAPI is the subset of rpc.LedgerClient used here.
type ledgerAPI interface {
	Register(ctx context.Context, in *rpc.RegisterRequest, opts ...grpc.CallOption) (*rpc.RegisterResponse, error)
	GetSalt(ctx context.Context, in *rpc.GetSaltRequest, opts ...grpc.CallOption) (*rpc.GetSaltResponse, error)
	Login(ctx context.Context, in *rpc.LoginRequest, opts ...grpc.CallOption) (*rpc.TokenResponse, error)
	RefreshToken(ctx context.Context, in *rpc.RefreshTokenRequest, opts ...grpc.CallOption) (*rpc.TokenResponse, error)
	CreateHousehold(ctx context.Context, in *rpc.CreateHouseholdRequest, opts ...grpc.CallOption) (*rpc.HouseholdResponse, error)
	ListHouseholds(ctx context.Context, in *rpc.ListHouseholdsRequest, opts ...grpc.CallOption) (*rpc.ListHouseholdsResponse, error)
	AddMember(ctx context.Context, in *rpc.AddMemberRequest, opts ...grpc.CallOption) (*rpc.MemberResponse, error)
	ListMembers(ctx context.Context, in *rpc.ListMembersRequest, opts ...grpc.CallOption) (*rpc.ListMembersResponse, error)
	FetchVersion(ctx context.Context, in *rpc.RecordRef, opts ...grpc.CallOption) (*rpc.VersionResponse, error)
	FetchRecord(ctx context.Context, in *rpc.RecordRef, opts ...grpc.CallOption) (*rpc.RecordResponse, error)
	ApplyWrite(ctx context.Context, in *models.WriteRequest, opts ...grpc.CallOption) (*models.WriteResult, error)
	Pull(ctx context.Context, in *rpc.PullRequest, opts ...grpc.CallOption) (*rpc.PullResponse, error)
	PresignReceipt(ctx context.Context, in *rpc.PresignReceiptRequest, opts ...grpc.CallOption) (*rpc.PresignReceiptResponse, error)
	ReceiptURL(ctx context.Context, in *rpc.ReceiptURLRequest, opts ...grpc.CallOption) (*rpc.ReceiptURLResponse, error)
}

const (
	pullPageSize = 500
	callTimeout  = 12 * time.Second
)

type GRPCClient struct {
	endpointURL string
	realtimeURL string
	conn        *grpc.ClientConn
	client      ledgerAPI
	health      healthpb.HealthClient

	mu          sync.RWMutex
	tokens      Tokens
	onRefreshed func(Tokens)
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	err := invoker(withAccessToken(ctx, s.accessToken()), method, req, reply, cc, opts...)
	if err == nil || !isTokenExpired(err) {
		return err
	}

	if rerr := s.refresh(ctx); rerr != nil {
		return err
	}
	return invoker(withAccessToken(ctx, s.accessToken()), method, req, reply, cc, opts...)
}

func (s *GRPCClient) accessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.AccessToken
}

// refresh rotates the token pair. The refresh call itself passes through
// the interceptor but is public on the server, so an expired access token
// does not recurse.
func (s *GRPCClient) refresh(ctx context.Context) error {
	s.mu.RLock()
	rt := s.tokens.RefreshToken
	s.mu.RUnlock()
	if rt == "" {
		return common.ErrUnauthorized
	}

	resp, err := s.client.RefreshToken(ctx, &rpc.RefreshTokenRequest{RefreshToken: rt})
	if err != nil {
		return rpc.FromStatus(err)
	}

	t := Tokens{UserID: resp.UserID, AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	s.mu.Lock()
	s.tokens = t
	cb := s.onRefreshed
	s.mu.Unlock()

	if cb != nil {
		cb(t)
	}
	return nil
}

type Option func(*GRPCClient)

// WithRealtimeURL sets the base URL (ws:// or wss://) of the change feed.
func WithRealtimeURL(u string) Option {
	return func(c *GRPCClient) { c.realtimeURL = u }
}

// OnTokensRefreshed registers a callback for rotated tokens, so they can be
// persisted.
func OnTokensRefreshed(fn func(Tokens)) Option {
	return func(c *GRPCClient) { c.onRefreshed = fn }
}

func NewFamLedgerClient(endpointURL string, opts ...Option) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	for _, o := range opts {
		o(c)
	}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = rpc.NewLedgerClient(conn)
	s.health = healthpb.NewHealthClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) SetTokens(t Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = t
}

func (s *GRPCClient) Tokens() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	return rpc.FromStatus(err)
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil {
		return s.mapError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: server status %s", common.ErrNetwork, resp.GetStatus())
	}
	return nil
}

func (s *GRPCClient) Register(ctx context.Context, userName string, salt, verifier []byte) (string, error) {
	resp, err := s.client.Register(ctx, &rpc.RegisterRequest{UserName: userName, Salt: salt, Verifier: verifier})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.UserID, nil
}

func (s *GRPCClient) GetSalt(ctx context.Context, userName string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := s.client.GetSalt(ctx, &rpc.GetSaltRequest{UserName: userName})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Salt, nil
}

func (s *GRPCClient) Login(ctx context.Context, userName string, verifier []byte) (*Tokens, error) {
	resp, err := s.client.Login(ctx, &rpc.LoginRequest{UserName: userName, Verifier: verifier})
	if err != nil {
		return nil, s.mapError(err)
	}

	t := Tokens{UserID: resp.UserID, AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	s.SetTokens(t)
	return &t, nil
}

func (s *GRPCClient) CreateHousehold(ctx context.Context, name string) (*models.Household, error) {
	resp, err := s.client.CreateHousehold(ctx, &rpc.CreateHouseholdRequest{Name: name})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &resp.Household, nil
}

func (s *GRPCClient) ListHouseholds(ctx context.Context) ([]models.Household, error) {
	resp, err := s.client.ListHouseholds(ctx, &rpc.ListHouseholdsRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Households, nil
}

func (s *GRPCClient) AddMember(ctx context.Context, householdID, userName, role string) (*models.Member, error) {
	resp, err := s.client.AddMember(ctx, &rpc.AddMemberRequest{HouseholdID: householdID, UserName: userName, Role: role})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &resp.Member, nil
}

func (s *GRPCClient) ListMembers(ctx context.Context, householdID string) ([]models.Member, error) {
	resp, err := s.client.ListMembers(ctx, &rpc.ListMembersRequest{HouseholdID: householdID})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Members, nil
}

func (s *GRPCClient) FetchCurrentVersion(ctx context.Context, entityType, id string) (int64, error) {
	resp, err := s.client.FetchVersion(ctx, &rpc.RecordRef{EntityType: entityType, EntityID: id})
	if err != nil {
		return 0, s.mapError(err)
	}
	return resp.Version, nil
}

func (s *GRPCClient) FetchRecord(ctx context.Context, entityType, id string) (*models.RemoteRecord, error) {
	resp, err := s.client.FetchRecord(ctx, &rpc.RecordRef{EntityType: entityType, EntityID: id})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &resp.Record, nil
}

func (s *GRPCClient) ApplyWrite(ctx context.Context, req models.WriteRequest) (*models.WriteResult, error) {
	resp, err := s.client.ApplyWrite(ctx, &req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

// Pull pages through the household change log until it is exhausted.
func (s *GRPCClient) Pull(ctx context.Context, householdID string, since int64) ([]models.RemoteChange, int64, error) {
	var all []models.RemoteChange
	for {
		resp, err := s.client.Pull(ctx, &rpc.PullRequest{HouseholdID: householdID, Since: since, Limit: pullPageSize})
		if err != nil {
			return nil, 0, s.mapError(err)
		}
		all = append(all, resp.Changes...)
		if len(resp.Changes) < pullPageSize || resp.Latest <= since {
			return all, resp.Latest, nil
		}
		since = resp.Latest
	}
}

func (s *GRPCClient) PresignReceipt(ctx context.Context, householdID, recordID, contentType string) (string, string, error) {
	resp, err := s.client.PresignReceipt(ctx, &rpc.PresignReceiptRequest{
		HouseholdID: householdID, RecordID: recordID, ContentType: contentType,
	})
	if err != nil {
		return "", "", s.mapError(err)
	}
	return resp.Key, resp.URL, nil
}

func (s *GRPCClient) ReceiptURL(ctx context.Context, householdID, key string) (string, error) {
	resp, err := s.client.ReceiptURL(ctx, &rpc.ReceiptURLRequest{HouseholdID: householdID, Key: key})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.URL, nil
}
