package grpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/rpc"
	"github.com/dmitrijs2005/famledger/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const userIDKey ctxKey = "userID"

const healthPrefix = "/grpc.health.v1.Health/"

func userIDFrom(ctx context.Context) (string, error) {
	id, ok := ctx.Value(userIDKey).(string)
	if !ok || id == "" {
		return "", common.ErrInvalidToken
	}
	return id, nil
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if rpc.PublicMethods[info.FullMethod] || strings.HasPrefix(info.FullMethod, healthPrefix) {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			accessToken = values[0]
		}
	}
	if accessToken == "" {
		return nil, rpc.ToStatus(fmt.Errorf("%w: missing token", common.ErrInvalidToken))
	}

	userID, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}

	return handler(context.WithValue(ctx, userIDKey, userID), req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	if err != nil {
		st, _ := status.FromError(err)
		s.logger.Warn(ctx, "call failed", "method", info.FullMethod, "code", st.Code().String(),
			"error", st.Message(), "duration", time.Since(start))
		return resp, err
	}
	s.logger.Debug(ctx, "call", "method", info.FullMethod, "duration", time.Since(start))
	return resp, nil
}
