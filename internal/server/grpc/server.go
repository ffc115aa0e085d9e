// Package grpc serves the Ledger service: it authenticates calls with the
// access-token interceptor, delegates to the services and reports health
// for client connectivity checks.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/dmitrijs2005/famledger/internal/rpc"
	smodels "github.com/dmitrijs2005/famledger/internal/server/models"
	"github.com/dmitrijs2005/famledger/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type UserService interface {
	Register(ctx context.Context, userName string, salt, verifier []byte) (*smodels.User, error)
	GetSalt(ctx context.Context, userName string) ([]byte, error)
	Login(ctx context.Context, userName string, verifier []byte) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

type HouseholdService interface {
	Create(ctx context.Context, userID, name string) (*models.Household, error)
	List(ctx context.Context, userID string) ([]models.Household, error)
	AddMember(ctx context.Context, actorID, householdID, userName, role string) (*models.Member, error)
	ListMembers(ctx context.Context, actorID, householdID string) ([]models.Member, error)
}

type RecordService interface {
	ApplyWrite(ctx context.Context, actorID string, req *models.WriteRequest) (*models.WriteResult, error)
	FetchVersion(ctx context.Context, actorID, entityType, id string) (int64, error)
	FetchRecord(ctx context.Context, actorID, entityType, id string) (*models.RemoteRecord, error)
	Pull(ctx context.Context, actorID, householdID string, since int64, limit int) ([]models.RemoteChange, int64, error)
}

type ReceiptService interface {
	PresignUpload(ctx context.Context, actorID, householdID, recordID, contentType string) (string, string, error)
	PresignDownload(ctx context.Context, actorID, householdID, key string) (string, error)
}

type GRPCServer struct {
	address    string
	users      UserService
	households HouseholdService
	records    RecordService
	receipts   ReceiptService
	logger     logging.Logger
	jwtSecret  []byte
}

func NewGRPCServer(address string, l logging.Logger, secretKey string,
	us UserService, hs HouseholdService, rs RecordService, rcs ReceiptService) *GRPCServer {
	return &GRPCServer{
		address:    address,
		logger:     l.With("module", "grpc_server"),
		users:      us,
		households: hs,
		records:    rs,
		receipts:   rcs,
		jwtSecret:  []byte(secretKey),
	}
}

var _ rpc.LedgerServer = (*GRPCServer)(nil)

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	rpc.RegisterLedgerServer(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "stopping gRPC server")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "starting gRPC server", "address", lis.Addr().String())
	return srv.Serve(lis)
}

func (s *GRPCServer) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}
