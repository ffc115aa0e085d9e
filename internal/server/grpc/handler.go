package grpc

import (
	"context"

	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/dmitrijs2005/famledger/internal/rpc"
)

func (s *GRPCServer) Register(ctx context.Context, req *rpc.RegisterRequest) (*rpc.RegisterResponse, error) {
	u, err := s.users.Register(ctx, req.UserName, req.Salt, req.Verifier)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	s.logger.Info(ctx, "registered", "user_name", req.UserName)
	return &rpc.RegisterResponse{UserID: u.ID}, nil
}

func (s *GRPCServer) GetSalt(ctx context.Context, req *rpc.GetSaltRequest) (*rpc.GetSaltResponse, error) {
	salt, err := s.users.GetSalt(ctx, req.UserName)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.GetSaltResponse{Salt: salt}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.TokenResponse, error) {
	tokens, err := s.users.Login(ctx, req.UserName, req.Verifier)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.TokenResponse{UserID: tokens.UserID, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *rpc.RefreshTokenRequest) (*rpc.TokenResponse, error) {
	tokens, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.TokenResponse{UserID: tokens.UserID, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) CreateHousehold(ctx context.Context, req *rpc.CreateHouseholdRequest) (*rpc.HouseholdResponse, error) {
	userID, err := userIDFrom(ctx)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	h, err := s.households.Create(ctx, userID, req.Name)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.HouseholdResponse{Household: *h}, nil
}

func (s *GRPCServer) ListHouseholds(ctx context.Context, _ *rpc.ListHouseholdsRequest) (*rpc.ListHouseholdsResponse, error) {
	userID, err := userIDFrom(ctx)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	list, err := s.households.List(ctx, userID)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.ListHouseholdsResponse{Households: list}, nil
}

func (s *GRPCServer) AddMember(ctx context.Context, req *rpc.AddMemberRequest) (*rpc.MemberResponse, error) {
	userID, err := userIDFrom(ctx)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	m, err := s.households.AddMember(ctx, userID, req.HouseholdID, req.UserName, req.Role)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.MemberResponse{Member: *m}, nil
}

func (s *GRPCServer) ListMembers(ctx context.Context, req *rpc.ListMembersRequest) (*rpc.ListMembersResponse, error) {
	userID, err := userIDFrom(ctx)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	members, err := s.households.ListMembers(ctx, userID, req.HouseholdID)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.ListMembersResponse{Members: members}, nil
}

func (s *GRPCServer) FetchVersion(ctx context.Context, req *rpc.RecordRef) (*rpc.VersionResponse, error) {
	userID, err := userIDFrom(ctx)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	v, err := s.records.FetchVersion(ctx, userID, req.EntityType, req.EntityID)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.VersionResponse{Version: v}, nil
}

func (s *GRPCServer) FetchRecord(ctx context.Context, req *rpc.RecordRef) (*rpc.RecordResponse, error) {
	userID, err := userIDFrom(ctx)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	rec, err := s.records.FetchRecord(ctx, userID, req.EntityType, req.EntityID)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.RecordResponse{Record: *rec}, nil
}

func (s *GRPCServer) ApplyWrite(ctx context.Context, req *models.WriteRequest) (*models.WriteResult, error) {
	userID, err := userIDFrom(ctx)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	res, err := s.records.ApplyWrite(ctx, userID, req)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return res, nil
}

func (s *GRPCServer) Pull(ctx context.Context, req *rpc.PullRequest) (*rpc.PullResponse, error) {
	userID, err := userIDFrom(ctx)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	changes, latest, err := s.records.Pull(ctx, userID, req.HouseholdID, req.Since, req.Limit)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.PullResponse{Changes: changes, Latest: latest}, nil
}

func (s *GRPCServer) PresignReceipt(ctx context.Context, req *rpc.PresignReceiptRequest) (*rpc.PresignReceiptResponse, error) {
	userID, err := userIDFrom(ctx)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	key, url, err := s.receipts.PresignUpload(ctx, userID, req.HouseholdID, req.RecordID, req.ContentType)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.PresignReceiptResponse{Key: key, URL: url}, nil
}

func (s *GRPCServer) ReceiptURL(ctx context.Context, req *rpc.ReceiptURLRequest) (*rpc.ReceiptURLResponse, error) {
	userID, err := userIDFrom(ctx)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	url, err := s.receipts.PresignDownload(ctx, userID, req.HouseholdID, req.Key)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.ReceiptURLResponse{URL: url}, nil
}
