package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/server/auth"
	"github.com/dmitrijs2005/famledger/internal/server/config"
	smodels "github.com/dmitrijs2005/famledger/internal/server/models"
)

func newUserService(t *testing.T) (*UserService, *fakeRepoManager, *config.Config) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 4; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
	rm := newFakeRepoManager()
	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
	return NewUserService(db, rm, cfg, logging.Nop()), rm, cfg
}

func TestUserService_RegisterLogin(t *testing.T) {
	s, _, cfg := newUserService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "alice", []byte("salt"), []byte("verifier"))
	require.NoError(t, err)
	assert.Equal(t, "id-alice", u.ID)

	_, err = s.Register(ctx, "alice", []byte("salt"), []byte("verifier"))
	assert.ErrorIs(t, err, common.ErrAlreadyExists)

	_, err = s.Register(ctx, "", []byte("salt"), []byte("verifier"))
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	pair, err := s.Login(ctx, "alice", []byte("verifier"))
	require.NoError(t, err)
	assert.Equal(t, "id-alice", pair.UserID)
	assert.Len(t, pair.RefreshToken, 64)

	uid, err := auth.GetUserIDFromToken(pair.AccessToken, []byte(cfg.SecretKey))
	require.NoError(t, err)
	assert.Equal(t, "id-alice", uid)

	_, err = s.Login(ctx, "alice", []byte("wrong"))
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = s.Login(ctx, "bob", []byte("verifier"))
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestUserService_LoginRepoError(t *testing.T) {
	s, rm, _ := newUserService(t)
	rm.users.getErr = errBoom

	_, err := s.Login(context.Background(), "alice", []byte("v"))
	assert.ErrorIs(t, err, common.ErrInternal)
}

func TestUserService_GetSalt(t *testing.T) {
	s, rm, _ := newUserService(t)
	ctx := context.Background()
	rm.users.byName["alice"] = &smodels.User{ID: "u1", UserName: "alice", Salt: []byte("pepper")}

	salt, err := s.GetSalt(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("pepper"), salt)

	random, err := s.GetSalt(ctx, "nobody")
	require.NoError(t, err)
	assert.Len(t, random, saltSize)

	rm.users.getErr = errBoom
	_, err = s.GetSalt(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrInternal)
}

func TestUserService_RefreshTokenIsSingleUse(t *testing.T) {
	s, rm, _ := newUserService(t)
	ctx := context.Background()
	rm.users.byName["alice"] = &smodels.User{ID: "u1", UserName: "alice", Verifier: []byte("v")}

	pair, err := s.Login(ctx, "alice", []byte("v"))
	require.NoError(t, err)

	next, err := s.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", next.UserID)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.Equal(t, 1, rm.refresh.purged)

	_, err = s.RefreshToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestUserService_RefreshTokenExpired(t *testing.T) {
	s, rm, _ := newUserService(t)
	rm.refresh.tokens["old"] = &smodels.RefreshToken{UserID: "u1", Expires: time.Now().Add(-time.Minute)}

	_, err := s.RefreshToken(context.Background(), "old")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	assert.NotErrorIs(t, err, common.ErrTokenExpired, "the client would retry the refresh")
}

func TestUserService_RefreshTokenStoreError(t *testing.T) {
	s, rm, _ := newUserService(t)
	rm.refresh.tokens["r"] = &smodels.RefreshToken{UserID: "u1", Expires: time.Now().Add(time.Minute)}
	rm.refresh.createErr = errBoom

	_, err := s.RefreshToken(context.Background(), "r")
	assert.ErrorIs(t, err, common.ErrInternal)
}
