package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/rpc"
	"github.com/dmitrijs2005/famledger/internal/server/auth"
)

const testSecret = "secret"

func newBareServer() *GRPCServer {
	return NewGRPCServer(":0", logging.Nop(), testSecret, nil, nil, nil, nil)
}

func withToken(t *testing.T, userID string, ttl time.Duration) context.Context {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(testSecret), ttl)
	require.NoError(t, err)
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AccessTokenHeaderName, token))
}

func echoUser(ctx context.Context, _ any) (any, error) {
	return userIDFrom(ctx)
}

func TestInterceptor_PublicMethodsSkipAuth(t *testing.T) {
	s := newBareServer()

	for _, method := range []string{rpc.FullMethod("Login"), rpc.FullMethod("GetSalt"), "/grpc.health.v1.Health/Check"} {
		called := false
		_, err := s.accessTokenInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: method},
			func(context.Context, any) (any, error) { called = true; return nil, nil })
		require.NoError(t, err, method)
		assert.True(t, called, method)
	}
}

func TestInterceptor_Token(t *testing.T) {
	s := newBareServer()
	info := &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod("ApplyWrite")}

	resp, err := s.accessTokenInterceptor(withToken(t, "u1", time.Minute), nil, info, echoUser)
	require.NoError(t, err)
	assert.Equal(t, "u1", resp)

	_, err = s.accessTokenInterceptor(context.Background(), nil, info, echoUser)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	bad := metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AccessTokenHeaderName, "garbage"))
	_, err = s.accessTokenInterceptor(bad, nil, info, echoUser)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = s.accessTokenInterceptor(withToken(t, "u1", -time.Minute), nil, info, echoUser)
	st, _ := status.FromError(err)
	assert.Equal(t, codes.Unauthenticated, st.Code())
	assert.Equal(t, common.ErrTokenExpired.Error(), st.Message(), "clients refresh on this message")
}

func TestUserIDFrom_Missing(t *testing.T) {
	_, err := userIDFrom(context.Background())
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
