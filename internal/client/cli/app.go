package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/famledger/internal/client/client"
	"github.com/dmitrijs2005/famledger/internal/client/config"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/famledger/internal/client/services"
	"github.com/dmitrijs2005/famledger/internal/client/session"
	"github.com/dmitrijs2005/famledger/internal/client/storage"
	"github.com/dmitrijs2005/famledger/internal/filex"
	"github.com/dmitrijs2005/famledger/internal/logging"
)

// App holds what every command needs: the server client, the local replica
// and the account services. The household session is opened on first use.
type App struct {
	config     *config.Config
	remote     client.Client
	db         *sql.DB
	auth       *services.AuthService
	households *services.HouseholdService
	reader     *bufio.Reader
	out        io.Writer
	log        logging.Logger

	session *session.Session
}

func NewApp(c *config.Config, remote client.Client, db *sql.DB, in io.Reader, out io.Writer, log logging.Logger) *App {
	repos := repomanager.NewSQLiteRepositoryManager()
	return &App{
		config:     c,
		remote:     remote,
		db:         db,
		auth:       services.NewAuthService(remote, db, repos, log),
		households: services.NewHouseholdService(remote, db, repos, log),
		reader:     bufio.NewReader(in),
		out:        out,
		log:        log,
	}
}

// BuildApp opens the local replica under the data dir and dials the server.
// Tokens rotated by the client are written back to the replica.
func BuildApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.NewTextLogger(os.Stderr, c.LogLevel)

	if _, err := filex.EnsureDir(c.DataDir); err != nil {
		return nil, err
	}
	db, err := storage.Open(ctx, c.DBPath())
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	var app *App
	remote, err := client.NewFamLedgerClient(c.ServerEndpointAddr,
		client.WithRealtimeURL(c.RealtimeURL),
		client.OnTokensRefreshed(func(t client.Tokens) {
			if err := app.auth.SaveTokens(context.Background(), t); err != nil {
				log.Warn(context.Background(), "rotated tokens not saved", "error", err)
			}
		}))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app = NewApp(c, remote, db, os.Stdin, os.Stdout, log)
	return app, nil
}

func (a *App) Close(ctx context.Context) error {
	if a.session != nil {
		a.session.Close(ctx)
		a.session = nil
	}
	err := a.remote.Close()
	if dbErr := a.db.Close(); err == nil {
		err = dbErr
	}
	return err
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// identity restores the cached login and hands its tokens to the client.
func (a *App) identity(ctx context.Context) (*services.Identity, error) {
	return a.auth.Restore(ctx)
}

// Session opens (once) the session of the logged-in user in the selected
// household.
func (a *App) Session(ctx context.Context) (*session.Session, error) {
	if a.session != nil {
		return a.session, nil
	}

	id, err := a.identity(ctx)
	if err != nil {
		return nil, err
	}
	householdID, err := a.households.Current(ctx)
	if err != nil {
		return nil, err
	}

	s, err := session.Open(ctx, a.db, a.remote, id.Tokens.UserID, householdID, session.Options{
		HistoryRetention:    a.config.HistoryRetention,
		OnlineCheckInterval: a.config.OnlineCheckInterval,
	}, a.log)
	if err != nil {
		return nil, err
	}
	a.session = s
	return s, nil
}

// dropSession forgets the open session, for example after switching
// households.
func (a *App) dropSession(ctx context.Context) {
	if a.session != nil {
		a.session.Close(ctx)
		a.session = nil
	}
}

// statusLine is the REPL prompt suffix.
func (a *App) statusLine(ctx context.Context) string {
	id, err := a.identity(ctx)
	if err != nil {
		return "(logged out)"
	}
	h, err := a.households.Current(ctx)
	if err != nil {
		return fmt.Sprintf("(%s)", id.UserName)
	}
	return fmt.Sprintf("(%s@%s)", id.UserName, h)
}
