// Package services contains the account-level application services of the
// FamLedger client: authentication and household management. Everything
// scoped to a single household lives in the session package.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/famledger/internal/client/client"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/cryptox"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/shared"
)

// ErrLocalDataNotAvailable means no earlier online login was cached, so an
// offline login cannot be verified.
var ErrLocalDataNotAvailable = errors.New("no offline login data")

// AuthRemote is the part of the server client the auth service needs.
type AuthRemote interface {
	Register(ctx context.Context, userName string, salt, verifier []byte) (string, error)
	GetSalt(ctx context.Context, userName string) ([]byte, error)
	Login(ctx context.Context, userName string, verifier []byte) (*client.Tokens, error)
	SetTokens(t client.Tokens)
	Ping(ctx context.Context) error
}

// Identity is the logged-in user of a local database.
type Identity struct {
	UserName string
	Tokens   client.Tokens
}

type AuthService struct {
	remote AuthRemote
	db     *sql.DB
	repos  repomanager.RepositoryManager
	log    logging.Logger
}

func NewAuthService(remote AuthRemote, db *sql.DB, repos repomanager.RepositoryManager, log logging.Logger) *AuthService {
	return &AuthService{remote: remote, db: db, repos: repos, log: log.With("module", "auth")}
}

// Register creates a new account on the server. It generates a random salt,
// derives a master key from the password and sends only salt and verifier.
func (a *AuthService) Register(ctx context.Context, userName string, password []byte) (string, error) {
	if userName == "" || len(password) == 0 {
		return "", fmt.Errorf("%w: user name and password are required", common.ErrInvalidArgument)
	}

	salt, err := cryptox.NewSalt()
	if err != nil {
		return "", err
	}
	key := cryptox.DeriveMasterKey(password, salt)
	defer shared.WipeByteArray(key)

	id, err := a.remote.Register(ctx, userName, salt, cryptox.MakeVerifier(key))
	if err != nil {
		return "", err
	}
	a.log.Info(ctx, "registered", "user", userName)
	return id, nil
}

// OnlineLogin authenticates against the server and caches what an offline
// login needs later: user, salt, verifier and the issued tokens.
func (a *AuthService) OnlineLogin(ctx context.Context, userName string, password []byte) (*Identity, error) {
	salt, err := a.remote.GetSalt(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("get salt error: %w", err)
	}

	key := cryptox.DeriveMasterKey(password, salt)
	defer shared.WipeByteArray(key)
	verifier := cryptox.MakeVerifier(key)

	tokens, err := a.remote.Login(ctx, userName, verifier)
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}

	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		meta := a.repos.Metadata(tx)
		for k, v := range map[string][]byte{
			metadata.KeyUserName: []byte(userName),
			metadata.KeySalt:     salt,
			metadata.KeyVerifier: verifier,
		} {
			if err := meta.Set(ctx, k, v); err != nil {
				return err
			}
		}
		return saveTokens(ctx, meta, *tokens)
	})
	if err != nil {
		return nil, fmt.Errorf("offline data saving error: %w", err)
	}

	return &Identity{UserName: userName, Tokens: *tokens}, nil
}

// OfflineLogin checks the password against the cached verifier and restores
// the cached tokens, so the session can sync once the server is back.
func (a *AuthService) OfflineLogin(ctx context.Context, userName string, password []byte) (*Identity, error) {
	meta := a.repos.Metadata(a.db)

	saved, err := meta.Get(ctx, metadata.KeyUserName)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, ErrLocalDataNotAvailable
	}
	if string(saved) != userName {
		return nil, common.ErrUnauthorized
	}

	salt, err := meta.Get(ctx, metadata.KeySalt)
	if err != nil {
		return nil, err
	}
	verifier, err := meta.Get(ctx, metadata.KeyVerifier)
	if err != nil {
		return nil, err
	}
	if salt == nil || verifier == nil {
		return nil, ErrLocalDataNotAvailable
	}
	if !cryptox.Verify(password, salt, verifier) {
		return nil, common.ErrUnauthorized
	}

	return a.Restore(ctx)
}

// Login tries the server first and falls back to the cached verifier when
// the server cannot be reached.
func (a *AuthService) Login(ctx context.Context, userName string, password []byte) (*Identity, bool, error) {
	id, err := a.OnlineLogin(ctx, userName, password)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, common.ErrNetwork) {
		return nil, false, err
	}

	a.log.Warn(ctx, "server unavailable, trying offline login", "error", err)
	id, err = a.OfflineLogin(ctx, userName, password)
	if err != nil {
		return nil, false, err
	}
	return id, false, nil
}

// Restore loads the cached identity and hands its tokens to the remote. It
// fails with common.ErrUnauthorized when nobody has logged in yet.
func (a *AuthService) Restore(ctx context.Context) (*Identity, error) {
	values, err := a.repos.Metadata(a.db).List(ctx)
	if err != nil {
		return nil, err
	}

	id := &Identity{
		UserName: string(values[metadata.KeyUserName]),
		Tokens: client.Tokens{
			UserID:       string(values[metadata.KeyUserID]),
			AccessToken:  string(values[metadata.KeyAccessToken]),
			RefreshToken: string(values[metadata.KeyRefreshToken]),
		},
	}
	if id.UserName == "" || id.Tokens.UserID == "" {
		return nil, fmt.Errorf("%w: not logged in", common.ErrUnauthorized)
	}

	a.remote.SetTokens(id.Tokens)
	return id, nil
}

// SaveTokens persists a rotated token pair. It is wired as the client's
// refresh callback.
func (a *AuthService) SaveTokens(ctx context.Context, t client.Tokens) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return saveTokens(ctx, a.repos.Metadata(tx), t)
	})
}

func saveTokens(ctx context.Context, meta metadata.Repository, t client.Tokens) error {
	for k, v := range map[string]string{
		metadata.KeyUserID:       t.UserID,
		metadata.KeyAccessToken:  t.AccessToken,
		metadata.KeyRefreshToken: t.RefreshToken,
	} {
		if err := meta.Set(ctx, k, []byte(v)); err != nil {
			return err
		}
	}
	return nil
}

// Logout forgets the tokens and the offline login data. Records, history and
// pending mutations stay, so nothing unsynced is lost.
func (a *AuthService) Logout(ctx context.Context) error {
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		meta := a.repos.Metadata(tx)
		for _, k := range []string{
			metadata.KeyUserID, metadata.KeyUserName, metadata.KeyAccessToken,
			metadata.KeyRefreshToken, metadata.KeySalt, metadata.KeyVerifier, metadata.KeyHousehold,
		} {
			if err := meta.Delete(ctx, k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.remote.SetTokens(client.Tokens{})
	return nil
}

func (a *AuthService) Ping(ctx context.Context) error {
	return a.remote.Ping(ctx)
}
