// Package services contains the server's business logic: accounts and
// tokens, households and membership, the authoritative record writes and
// receipt upload links.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/server/auth"
	"github.com/dmitrijs2005/famledger/internal/server/config"
	"github.com/dmitrijs2005/famledger/internal/server/models"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/famledger/internal/shared"
)

const saltSize = 32

// TokenPair bundles a short-lived access token and a single-use refresh
// token.
type TokenPair struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	log                          logging.Logger
	now                          func() time.Time
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		log:                          log.With("module", "users"),
		now:                          time.Now,
	}
}

func (s *UserService) Register(ctx context.Context, userName string, salt, verifier []byte) (*models.User, error) {
	if userName == "" || len(salt) == 0 || len(verifier) == 0 {
		return nil, fmt.Errorf("%w: user name, salt and verifier are required", common.ErrInvalidArgument)
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, &models.User{UserName: userName, Salt: salt, Verifier: verifier})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	s.log.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// GetSalt returns the user's salt, or a random one for an unknown user so
// the answer does not reveal whether the account exists.
func (s *UserService) GetSalt(ctx context.Context, userName string) ([]byte, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return shared.RandBytes(saltSize)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	return user.Salt, nil
}

func (s *UserService) Login(ctx context.Context, userName string, verifierCandidate []byte) (*TokenPair, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	if subtle.ConstantTimeCompare(user.Verifier, verifierCandidate) != 1 {
		return nil, common.ErrUnauthorized
	}
	return s.generateTokenPair(ctx, user.ID, s.db)
}

// RefreshToken redeems refreshToken and issues a new pair. A refresh token
// works once; an unknown or expired one is common.ErrUnauthorized.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*TokenPair, error) {
		repo := s.repomanager.RefreshTokens(tx)

		token, err := repo.Consume(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown refresh token", common.ErrUnauthorized)
			}
			return nil, err
		}

		now := s.now()
		if token.Expires.Before(now) {
			return nil, fmt.Errorf("%w: refresh token expired", common.ErrUnauthorized)
		}
		if err := repo.PurgeExpired(ctx, token.UserID, now); err != nil {
			return nil, err
		}
		return s.generateTokenPair(ctx, token.UserID, tx)
	})
}

func (s *UserService) generateTokenPair(ctx context.Context, userID string, db dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: sign token: %v", common.ErrInternal, err)
	}
	refresh, err := shared.MakeRandHexString(32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	if err := s.repomanager.RefreshTokens(db).Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, fmt.Errorf("%w: store refresh token: %v", common.ErrInternal, err)
	}
	return &TokenPair{UserID: userID, AccessToken: access, RefreshToken: refresh}, nil
}
